package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/illarion/walletlock/internal/crypto"
)

// Passwd changes the password of wallet n
func Passwd(ctx context.Context, env *Env, n int) {
	m := env.OpenManager()
	defer m.Close()

	currentPassword := GetPasswordOrExit("Enter current password: ")
	defer crypto.ClearBytes(currentPassword)

	newPassword := GetNewPassword("Enter new password: ")
	defer crypto.ClearBytes(newPassword)

	if err := m.ChangePassword(ctx, n, currentPassword, newPassword); err != nil {
		HandleError(err)
	}

	// Old ciphertexts are overwritten; reclaim their pages
	if err := m.Compact(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: compaction failed: %s\n", err)
	}

	fmt.Println("password changed successfully")
}
