// Command cdm8as is the CdM-8 assembler CLI (SPEC_FULL.md §4.10).
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/uh-mickwal/cdm8toolchain/internal/asmerr"
	"github.com/uh-mickwal/cdm8toolchain/internal/config"
	"github.com/uh-mickwal/cdm8toolchain/internal/context"
	"github.com/uh-mickwal/cdm8toolchain/internal/driver"
	"github.com/uh-mickwal/cdm8toolchain/internal/listing"
	"github.com/uh-mickwal/cdm8toolchain/internal/macro"
	"github.com/uh-mickwal/cdm8toolchain/internal/objfmt"
)

var (
	flagListing   bool
	flagListingX  bool
	flagMacroLibs []string
	flagDebug     bool
	flagV3        bool
)

var rootCmd = &cobra.Command{
	Use:   "cdm8as <source.asm>",
	Short: "Assemble a CdM-8 source file into a relocatable object file",
	Args:  cobra.ExactArgs(1),
	RunE:  runAssemble,
}

func init() {
	rootCmd.Flags().BoolVarP(&flagListing, "l", "l", false, "produce a listing")
	rootCmd.Flags().BoolVar(&flagListingX, "lx", false, "produce a listing including macro expansions")
	rootCmd.Flags().StringArrayVarP(&flagMacroLibs, "m", "m", nil, "additional macro library file(s)")
	rootCmd.Flags().BoolVarP(&flagDebug, "d", "d", false, "enable debug trace")
	rootCmd.Flags().BoolVar(&flagV3, "v3", false, "compile for the legacy Mark 3 core (forbids ldsa/addsp/setsp/pushall/popall)")

	viper.AutomaticEnv()
	_ = viper.BindPFlag("assembler.listing", rootCmd.Flags().Lookup("l"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runAssemble(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}

	sourcePath := args[0]
	if filepath.Ext(sourcePath) == "" {
		sourcePath += ".asm"
	}

	srcBytes, err := os.ReadFile(sourcePath) // #nosec G304 -- user-supplied source path
	if err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
	lines := strings.Split(string(srcBytes), "\n")

	libs, warnings := loadMacroLibraries(cfg, flagMacroLibs)
	for _, w := range warnings {
		color.Yellow("warning: %s", w)
	}

	drv := driver.New(lines, libs...)
	drv.Ctx.V3 = flagV3
	if flagDebug {
		fmt.Fprintf(os.Stderr, "cdm8as: debug: %d source lines, %d macro librar(y/ies)\n", len(lines), len(libs))
	}

	emissions := drv.Run()
	if drv.Diags.HasErrors() {
		printDiagnostics(drv.Diags)
		os.Exit(1)
	}

	objText, objWarnings, err := objfmt.Write(drv.Ctx, emissions)
	if err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
	for _, w := range objWarnings {
		drv.Diags.AddWarning(0, w)
	}

	outBase := strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath))
	if err := os.WriteFile(outBase+".o", []byte(objText), 0644); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}

	if flagListing || flagListingX {
		lst := listing.Format(drv.Ctx, emissions, flagListingX || cfg.Assembler.IncludeGenerated)
		if err := os.WriteFile(outBase+".lst", []byte(lst), 0644); err != nil {
			color.Red("error: %v", err)
			os.Exit(1)
		}
	}

	if w := drv.Diags.PrintWarnings(); w != "" {
		color.Yellow("%s", w)
	}
	return nil
}

// loadMacroLibraries implements the standard.mlb search order (spec
// §6.5, SPEC_FULL.md §6.6): $CDM8_MLB_PATH entries, then beside the
// executable, then the current directory — each phase warning-only. The
// first candidate that loads is used and the rest are not read.
func loadMacroLibraries(cfg *config.Config, extra []string) ([]map[string]*context.Macro, []string) {
	var libs []map[string]*context.Macro
	var warnings []string

	candidates := searchPaths()
	found := false
	for _, path := range candidates {
		text, err := os.ReadFile(path) // #nosec G304 -- fixed-name macro library search path
		if err != nil {
			continue
		}
		lib, err := macro.ParseLibrary(string(text))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("macro library %q: %v", path, err))
			continue
		}
		libs = append(libs, lib)
		found = true
		break
	}
	if !found {
		warnings = append(warnings, "standard.mlb not found; proceeding without a standard macro library")
	}

	for _, path := range extra {
		text, err := os.ReadFile(path) // #nosec G304 -- user-supplied -m path
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("macro library %q: %v", path, err))
			continue
		}
		lib, err := macro.ParseLibrary(string(text))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("macro library %q: %v", path, err))
			continue
		}
		libs = append(libs, lib)
	}
	return libs, warnings
}

func searchPaths() []string {
	var paths []string
	if env := os.Getenv("CDM8_MLB_PATH"); env != "" {
		paths = append(paths, strings.Split(env, ":")...)
	}
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), "standard.mlb"))
	}
	paths = append(paths, "standard.mlb")
	return paths
}

func printDiagnostics(diags *asmerr.List) {
	color.Red("%s", diags.Error())
}
