package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/reviewapps-dev/wfpack/internal/artifact"
	"github.com/reviewapps-dev/wfpack/internal/versions"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and prune the artifact cache",
	}
	cmd.AddCommand(newCacheListCmd())
	cmd.AddCommand(newCacheEvictCmd())
	return cmd
}

func newCacheListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list CACHE_DIR",
		Short: "List cached server and runtime archives",
		Args:  cobra.ExactArgs(1),
		RunE:  runCacheList,
	}
}

func newCacheEvictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "evict CACHE_DIR COMPONENT VERSION",
		Short: "Remove one cached archive (COMPONENT is server or runtime)",
		Args:  cobra.ExactArgs(3),
		RunE:  runCacheEvict,
	}
}

func openCache(dir string) (*artifact.Cache, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return artifact.New(dir, artifact.NewTemplateSource(cfg.Sources, cfg.Stack)), nil
}

func runCacheList(cmd *cobra.Command, args []string) error {
	cache, err := openCache(args[0])
	if err != nil {
		return err
	}
	entries, err := cache.List()
	if err != nil {
		return err
	}

	if outputJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if entries == nil {
			entries = []artifact.Entry{}
		}
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "cache is empty")
		return nil
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPONENT\tVERSION\tFETCHED\tCHECKSUM\tPATH")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.Component.DisplayName(), e.Version, e.FetchedAt.Format("2006-01-02 15:04"), shortSum(e.Checksum), e.Path)
	}
	return tw.Flush()
}

func runCacheEvict(cmd *cobra.Command, args []string) error {
	cache, err := openCache(args[0])
	if err != nil {
		return err
	}
	comp := versions.Component(args[1])
	if comp != versions.Server && comp != versions.Runtime {
		return fmt.Errorf("unknown component %q: want %s or %s", args[1], versions.Server, versions.Runtime)
	}
	if err := cache.Evict(comp, args[2]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "evicted %s %s\n", comp.DisplayName(), args[2])
	return nil
}

func shortSum(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
