package storage

import (
	"fmt"

	"github.com/anoixa/yolo-annotator/config"
	log "github.com/sirupsen/logrus"
)

// NewProvider 按配置创建存储提供者
func NewProvider(cfg *config.Config) (Provider, error) {
	log.Infof("Initializing storage, type: %s", cfg.StorageType)

	var (
		provider Provider
		err      error
	)

	switch cfg.StorageType {
	case "", "local":
		provider, err = NewLocalStorage(cfg.StorageLocalPath)
	case "minio":
		provider, err = NewMinioStorage(MinioConfig{
			Endpoint:        cfg.StorageMinioEndpoint,
			AccessKeyID:     cfg.StorageMinioAccessKey,
			SecretAccessKey: cfg.StorageMinioSecretKey,
			BucketName:      cfg.StorageMinioBucket,
			UseSSL:          cfg.StorageMinioUseSSL,
		})
	case "webdav":
		provider, err = NewWebDAVStorage(WebDAVConfig{
			URL:      cfg.StorageWebDAVURL,
			Username: cfg.StorageWebDAVUsername,
			Password: cfg.StorageWebDAVPassword,
			RootPath: cfg.StorageWebDAVRootPath,
			Timeout:  cfg.StorageWebDAVTimeout,
		})
	default:
		return nil, fmt.Errorf("invalid storage type: %s", cfg.StorageType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage: %w", cfg.StorageType, err)
	}

	log.Infof("Successfully initialized storage provider: %s", provider.Name())
	return provider, nil
}
