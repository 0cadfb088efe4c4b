package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// sandboxesCmd lists every provisioned sandbox manifest, in the
// text/tabwriter idiom the teacher's internal/cli/list.go used for its
// sandbox table.
var sandboxesCmd = &cobra.Command{
	Use:   "sandboxes",
	Short: "List provisioned sandboxes and their dependencies",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := os.ReadDir(workDir)
		if os.IsNotExist(err) {
			fmt.Println("no sandboxes provisioned yet")
			return nil
		}
		if err != nil {
			return err
		}

		var manifests []string
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".txt") {
				manifests = append(manifests, e.Name())
			}
		}
		sort.Strings(manifests)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SANDBOX\tDEPENDENCIES")
		for _, name := range manifests {
			id := strings.TrimSuffix(name, ".txt")
			deps, err := readDeps(filepath.Join(workDir, name))
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\n", id, strings.Join(deps, ", "))
		}
		return w.Flush()
	},
}

func readDeps(manifestPath string) ([]string, error) {
	f, err := os.Open(manifestPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var deps []string
	sc := bufio.NewScanner(f)
	first := true
	for sc.Scan() {
		if first {
			first = false
			continue // skip the "# sandbox: <id>" header line
		}
		if line := strings.TrimSpace(sc.Text()); line != "" {
			deps = append(deps, line)
		}
	}
	return deps, sc.Err()
}

func init() {
	rootCmd.AddCommand(sandboxesCmd)
}
