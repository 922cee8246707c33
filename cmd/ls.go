package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
)

// Ls lists wallets. No password required.
func Ls(env *Env) {
	m := env.OpenManager()
	defer m.Close()

	wallets, err := m.Wallets()
	if err != nil {
		HandleError(err)
	}

	if len(wallets) == 0 {
		fmt.Println("No wallets")
		fmt.Println("Use 'walletlock create' or 'walletlock ledger add' to add one")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tNAME\tKIND\tPATH\tADDRESS\tCREATED")
	for _, info := range wallets {
		address := info.Address
		if address == "" {
			address = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			info.Number, info.Name, info.Kind, info.DerivationPath, address, info.Created.Format("2006-01-02"))
	}
	w.Flush()
}
