package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/thishamdi/digital-store-api/internal/db"
	"github.com/thishamdi/digital-store-api/internal/models"
	"github.com/thishamdi/digital-store-api/internal/services/account"
	"github.com/thishamdi/digital-store-api/internal/validate"
)

type adminOpts struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Verified bool   `json:"-"`
}

var adminFlags adminOpts

// storectl create-admin --username u --email e --password p [--verified]
var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin account without going through the API",
	RunE: func(cmd *cobra.Command, args []string) error {
		gdb, err := bootDB()
		if err != nil {
			return err
		}
		defer db.Close(gdb)

		u, err := createAdmin(cmd.Context(), gdb, adminFlags)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Admin %s <%s> created (id %s)\n", u.Username, u.Email, u.ID)
		return nil
	},
}

func init() {
	f := createAdminCmd.Flags()
	f.StringVar(&adminFlags.Username, "username", "", "admin username (3-30 chars)")
	f.StringVar(&adminFlags.Email, "email", "", "admin email")
	f.StringVar(&adminFlags.Password, "password", "", "admin password (min 8 chars)")
	f.BoolVar(&adminFlags.Verified, "verified", false, "mark the email as already verified")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")
}

func createAdmin(ctx context.Context, gdb *gorm.DB, opts adminOpts) (*models.User, error) {
	if err := validate.Struct(opts); err != nil {
		return nil, err
	}

	u, err := account.NewAdmin(opts.Username, opts.Email, opts.Password)
	if err != nil {
		return nil, err
	}
	u.IsEmailVerified = opts.Verified

	if err := gdb.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, account.ErrUserExists
		}
		return nil, fmt.Errorf("create admin: %w", err)
	}
	return u, nil
}
