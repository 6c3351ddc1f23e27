package cmd

import (
	"context"
	"fmt"

	"github.com/anoixa/yolo-annotator/config"
	"github.com/anoixa/yolo-annotator/database/models"
	"github.com/anoixa/yolo-annotator/internal/app"
	"github.com/anoixa/yolo-annotator/internal/users"
	"github.com/anoixa/yolo-annotator/utils"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user account",
	Long: `Create a user account. A random password is generated when --password is omitted.

Example:
  yolo-annotator user create --username alice --role annotator`,
	Run: func(cmd *cobra.Command, args []string) {
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		role, _ := cmd.Flags().GetString("role")

		withUsers(func(svc *users.Service) error {
			generated := password == ""
			if generated {
				var err error
				if password, err = utils.RandomPassword(16); err != nil {
					return err
				}
			}

			user, err := svc.Create(context.Background(), users.CreateInput{Username: username, Password: password, Role: role})
			if err != nil {
				return err
			}
			fmt.Printf("Created %s %q (id: %s)\n", user.Role, user.Username, user.ID)
			if generated {
				fmt.Printf("Generated password: %s\n", password)
			}
			return nil
		})
	},
}

var userResetPasswordCmd = &cobra.Command{
	Use:   "reset-password",
	Short: "Reset a user's password",
	Run: func(cmd *cobra.Command, args []string) {
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")

		withUsers(func(svc *users.Service) error {
			if err := svc.ResetPassword(context.Background(), username, password); err != nil {
				return err
			}
			fmt.Printf("Password updated for %q\n", username)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd, userResetPasswordCmd)

	userCreateCmd.Flags().StringP("username", "u", "", "Username (required)")
	userCreateCmd.Flags().StringP("password", "p", "", "Password (default: generated)")
	userCreateCmd.Flags().StringP("role", "r", models.RoleAnnotator, "Role: admin or annotator")
	_ = userCreateCmd.MarkFlagRequired("username")

	userResetPasswordCmd.Flags().StringP("username", "u", "", "Username (required)")
	userResetPasswordCmd.Flags().StringP("password", "p", "", "New password (required)")
	_ = userResetPasswordCmd.MarkFlagRequired("username")
	_ = userResetPasswordCmd.MarkFlagRequired("password")
}

// withUsers 打开容器并确保表结构存在
func withUsers(fn func(svc *users.Service) error) {
	container, err := app.NewContainer(config.Get())
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer func() { _ = container.Close() }()

	if err := container.GetDatabaseProvider().AutoMigrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	if err := fn(container.Users); err != nil {
		log.Fatalf("User command failed: %v", err)
	}
}
