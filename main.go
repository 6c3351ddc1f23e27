package main

import (
	"time"

	"github.com/anoixa/yolo-annotator/cmd"
	"github.com/anoixa/yolo-annotator/config"
	log "github.com/sirupsen/logrus"
)

func init() {
	var cstZone = time.FixedZone("CST", 8*3600) // 东八
	time.Local = cstZone
}

func main() {
	log.Infof("yolo-annotator %s (%s)", config.Version, config.CommitHash)
	cmd.Execute()
}
