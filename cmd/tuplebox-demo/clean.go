package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove every provisioned sandbox, manifest and socket",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.RemoveAll(workDir); err != nil {
			return err
		}
		fmt.Printf("removed %s\n", workDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}
