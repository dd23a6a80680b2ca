package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DaveSongnata/BitTask/internal/config"
	"github.com/DaveSongnata/BitTask/internal/ui"
)

var (
	configFile   string
	outputFormat string

	// settings resolves flags, environment and the config file.
	settings = config.New()
)

var rootCmd = &cobra.Command{
	Use:   "bittask",
	Short: "Local-first task store with an offline sync queue",
	Long: `bittask manages the local BitTask database: boards, tasks, subtasks and
attachments. Every change to a task or attachment is recorded in the offline
queue so it can be replayed to the server later.

Tasks are addressed by their citation number, written "#12" or "12".`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch outputFormat {
		case "text", "json", "yaml":
		default:
			return fmt.Errorf("unknown output format %q (want text, json or yaml)", outputFormat)
		}
		if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
			ui.SetColor(false)
		}
		return nil
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "data", Title: "Boards and tasks:"},
		&cobra.Group{ID: "sync", Title: "Queue and live updates:"},
	)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (default $XDG_CONFIG_HOME/bittask/config.toml)")
	pf.String("db", "", "database file (default $XDG_DATA_HOME/bittask/BitTask.db)")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.String("log-file", "", "write JSON logs to this file instead of stderr")
	pf.StringVarP(&outputFormat, "output", "o", "text", "output format: text, json or yaml")
	pf.Bool("no-color", false, "disable colored output")

	_ = settings.BindPFlag("db.path", pf.Lookup("db"))
	_ = settings.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = settings.BindPFlag("log.file", pf.Lookup("log-file"))
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
