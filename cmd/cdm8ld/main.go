// Command cdm8ld is the CdM-8 linker CLI (SPEC_FULL.md §4.10).
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/uh-mickwal/cdm8toolchain/internal/config"
	"github.com/uh-mickwal/cdm8toolchain/internal/linker"
	"github.com/uh-mickwal/cdm8toolchain/internal/objfmt"
)

var (
	flagListing  bool
	flagAbsolute bool
	flagRelative bool
	flagAllowZero bool
	flagSym      bool
	flagEncrypt  bool
)

var rootCmd = &cobra.Command{
	Use:   "cdm8ld <object-file>...",
	Short: "Link CdM-8 object files into a 256-byte memory image",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLink,
}

func init() {
	rootCmd.Flags().BoolVarP(&flagListing, "l", "l", false, "print the written image file name to stderr (no listing is produced)")
	rootCmd.Flags().BoolVarP(&flagAbsolute, "a", "a", false, "absolute-only mode")
	rootCmd.Flags().BoolVarP(&flagRelative, "r", "r", false, "relative mode (load starting at main)")
	rootCmd.Flags().BoolVarP(&flagAllowZero, "z", "z", false, "allow placement from address 0")
	rootCmd.Flags().BoolVarP(&flagSym, "s", "s", false, "symbol-enhanced image")
	rootCmd.Flags().BoolVarP(&flagEncrypt, "y", "y", false, "encrypted image")

	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runLink(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}

	l := linker.New()
	for _, path := range args {
		text, err := os.ReadFile(path) // #nosec G304 -- user-supplied object file path
		if err != nil {
			color.Red("error: %v", err)
			os.Exit(1)
		}
		f, err := objfmt.Read(string(text))
		if err != nil {
			color.Red("error: %s: %v", path, err)
			os.Exit(1)
		}
		if err := l.Ingest(path, f); err != nil {
			color.Red("linker error: %v", err)
			os.Exit(1)
		}
	}

	switch {
	case flagAbsolute:
		l.SelectAbsolute()
	case flagRelative:
		if err := l.SelectRelative(); err != nil {
			color.Red("linker error: %v", err)
			os.Exit(1)
		}
	default:
		l.SelectAll()
	}

	lowBound := cfg.Linker.LowBound
	if flagAllowZero {
		lowBound = 0
	}
	if err := l.Place(lowBound); err != nil {
		color.Red("linker error: %v", err)
		os.Exit(1)
	}
	if err := l.ResolveExternals(); err != nil {
		color.Red("linker error: %v", err)
		os.Exit(1)
	}

	format := cfg.Linker.ImageFormat
	if flagEncrypt {
		format = "crypt"
	} else if flagSym {
		format = "sym"
	}

	var imgText string
	switch format {
	case "crypt":
		imgText = l.WriteCrypt(time.Now().UnixNano() % 1_000_000_000_000)
	case "sym":
		imgText = l.WriteSym()
	default:
		imgText = l.WriteRaw()
	}

	outName := "a.img"
	if len(args) == 1 {
		outName = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0])) + ".img"
	}
	if err := os.WriteFile(outName, []byte(imgText), 0644); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}

	if flagListing {
		fmt.Fprintf(os.Stderr, "cdm8ld: wrote %s\n", outName)
	}
	return nil
}
