package cmd

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"apfs-inspect/internal/bootstrap"
	"apfs-inspect/internal/config"
	"apfs-inspect/internal/diagnostics"
)

var (
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "apfs-inspect <image>",
	Short: "Resolve the latest consistent checkpoint of an APFS container image",
	Long: `apfs-inspect is a read-only forensic tool that walks the checkpoint-
descriptor ring buffer of an Apple File System container image, selects the
newest well-formed checkpoint, loads its ephemeral objects, and follows the
container object map to its B-tree root. It does not mount, repair, or write
anything.`,
	Args: validateImageArg,
	RunE: runInspect,
}

// validateImageArg accepts exactly one non-empty positional argument,
// reporting a missing or extra argument through the same typed error
// taxonomy the rest of the pipeline uses rather than Cobra's default.
func validateImageArg(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return &bootstrap.ArgumentError{Msg: fmt.Sprintf("expected exactly one container image path, got %d", len(args))}
	}
	if args[0] == "" {
		return &bootstrap.ArgumentError{Msg: "container image path must not be empty"}
	}
	return nil
}

// Execute adds all child commands to the root command and sets flags
// appropriately, then runs the command, exiting the process with the
// taxonomy-driven code returned by exitCodeFor.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "raise log level to debug")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
}

func runInspect(cmd *cobra.Command, args []string) error {
	diagnostics.SetVerbose(verbose)

	cfg, err := config.Load(configPath)
	if err != nil {
		return &bootstrap.IOError{Msg: "load configuration", Err: err}
	}
	if cfg.Verbose {
		diagnostics.SetVerbose(true)
	}

	outcome, err := bootstrap.Run(args[0])
	if unimpl, ok := err.(*bootstrap.UnimplementedError); ok {
		diagnostics.Endf("%s", unimpl.Error())
		return nil
	}
	if err != nil {
		diagnostics.Fatalf("%v", err)
		return err
	}

	report(outcome)
	return nil
}

// report renders an Outcome as the human-readable text this tool's
// stdout contract calls for.
func report(o *bootstrap.Outcome) {
	fmt.Printf("Checkpoint lies at index %d (xid %d)\n", o.DescriptorIndex, o.Superblock.NxO.OXid)
	fmt.Printf("Container UUID: %s\n", uuid.UUID(o.Superblock.NxUuid).String())
	if o.Superblock.IsFusion() {
		fmt.Printf("Fusion UUID: %s\n", uuid.UUID(o.Superblock.NxFusionUuid).String())
	}
	if o.Superblock.HasKeylocker() {
		fmt.Println("Container carries an on-disk keybag (encrypted volumes present)")
	}
	fmt.Printf("There are %d checkpoint-mappings\n", o.CheckpointMaps)
	fmt.Printf("Object map tree oid: %d (B-tree root valid: %t)\n", o.Omap.Omap.OmTreeOid, o.BtreeRootValid)

	fmt.Printf("Volumes (%d):\n", len(o.VolumeOIDs))
	for i, oid := range o.VolumeOIDs {
		if i < len(o.ResolvedVolumes) && o.ResolvedVolumes[i].Found {
			fmt.Printf("  oid=%d -> paddr=%d\n", oid, o.ResolvedVolumes[i].Paddr)
		} else {
			fmt.Printf("  oid=%d\n", oid)
		}
	}
}

// exitCodeFor maps the error taxonomy to the process exit codes spec.md
// §6 defines: 0 for success or graceful unimplemented termination
// (runInspect already returns nil for that case, so RunE never surfaces
// an UnimplementedError here), 1 for argument errors, and a negative code
// for I/O or allocation failures — mapped to 1 here, since os.Exit
// truncates to the low byte on every platform this tool targets.
func exitCodeFor(err error) int {
	switch err.(type) {
	case *bootstrap.ArgumentError:
		return 1
	case *bootstrap.IOError, *bootstrap.AllocationError:
		return 1
	default:
		return 1
	}
}
