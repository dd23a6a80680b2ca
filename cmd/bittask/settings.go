package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DaveSongnata/BitTask/internal/media"
	"github.com/DaveSongnata/BitTask/internal/types"
	"github.com/DaveSongnata/BitTask/internal/ui"
)

var settingsCmd = &cobra.Command{
	Use:     "settings",
	GroupID: "data",
	Short:   "Show or change stored preferences",
}

func printSettings(s *types.Settings) {
	onOff := func(b bool) string {
		if b {
			return ui.RenderPass("on")
		}
		return ui.RenderMuted("off")
	}
	fmt.Printf("%s\n", ui.RenderHeader("Settings"))
	fmt.Printf("   Theme:              %s\n", s.Theme)
	fmt.Printf("   Mode:               %s\n", s.Mode)
	fmt.Printf("   Max attachment:     %s\n", media.FormatSize(s.MaxAttachmentSize))
	fmt.Printf("   Image compression:  %s\n", onOff(s.ImageCompression))
	fmt.Printf("   Thumbnails:         %s\n", onOff(s.Thumbnails))
	fmt.Printf("   Link previews:      %s\n", onOff(s.LinkPreviews))
	fmt.Printf("   Updated:            %s\n", formatTime(s.UpdatedAt))
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current settings",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		s, err := a.svc.Settings.Get(cmd.Context())
		if err != nil {
			a.fail("%v", err)
		}
		emit(s, func() { printSettings(s) })
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change settings",
	Long: `Change settings. Only the flags given are changed.

  bittask settings set --max-attachment-size 5242880 --thumbnails=false`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		flags := cmd.Flags()
		var patch types.SettingsPatch
		if flags.Changed("theme") {
			v, _ := flags.GetString("theme")
			patch.Theme = &v
		}
		if flags.Changed("mode") {
			v, _ := flags.GetString("mode")
			patch.Mode = &v
		}
		if flags.Changed("max-attachment-size") {
			v, _ := flags.GetInt64("max-attachment-size")
			patch.MaxAttachmentSize = &v
		}
		if flags.Changed("image-compression") {
			v, _ := flags.GetBool("image-compression")
			patch.ImageCompression = &v
		}
		if flags.Changed("thumbnails") {
			v, _ := flags.GetBool("thumbnails")
			patch.Thumbnails = &v
		}
		if flags.Changed("link-previews") {
			v, _ := flags.GetBool("link-previews")
			patch.LinkPreviews = &v
		}

		s, err := a.svc.Settings.Update(cmd.Context(), patch)
		if err != nil {
			a.fail("%v", err)
		}
		emit(s, func() { printSettings(s) })
	},
}

func init() {
	f := settingsSetCmd.Flags()
	f.String("theme", "", "color theme")
	f.String("mode", "", "board display mode")
	f.Int64("max-attachment-size", 0, "largest accepted attachment in bytes")
	f.Bool("image-compression", true, "downscale large images on upload")
	f.Bool("thumbnails", true, "store thumbnails for images")
	f.Bool("link-previews", true, "keep preview metadata on links")

	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}
