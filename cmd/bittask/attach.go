package main

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/DaveSongnata/BitTask/internal/media"
	"github.com/DaveSongnata/BitTask/internal/service"
	"github.com/DaveSongnata/BitTask/internal/types"
	"github.com/DaveSongnata/BitTask/internal/ui"
)

var attachCmd = &cobra.Command{
	Use:     "attach",
	GroupID: "data",
	Short:   "Attach files and links to tasks",
}

var attachListCmd = &cobra.Command{
	Use:   "list <#n>",
	Short: "List a task's attachments",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		task := a.mustTask(cmd, args[0])
		attachments, err := a.svc.Attachments.ListAttachments(cmd.Context(), task.ID)
		if err != nil {
			a.fail("%v", err)
		}
		emit(attachments, func() {
			if len(attachments) == 0 {
				fmt.Println(ui.RenderMuted("No attachments"))
				return
			}
			for _, att := range attachments {
				printAttachmentLine(att)
			}
		})
	},
}

var attachAddCmd = &cobra.Command{
	Use:   "add <#n> <file>",
	Short: "Attach an image, audio file or PDF",
	Long: `Attach an image, audio file or PDF to a task. The type is taken from the
MIME type, which is guessed from the file extension and contents unless
--mime is given. Images are downscaled and get a thumbnail when the
corresponding settings are on.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		task := a.mustTask(cmd, args[0])
		path := args[1]
		data, err := os.ReadFile(path)
		if err != nil {
			a.fail("failed to read %s: %v", path, err)
		}

		mimeType, _ := cmd.Flags().GetString("mime")
		if mimeType == "" {
			mimeType = guessMIME(path, data)
		}
		name, _ := cmd.Flags().GetString("name")
		if name == "" {
			name = filepath.Base(path)
		}

		att, err := a.svc.Attachments.CreateAttachment(cmd.Context(), service.CreateAttachmentInput{
			TaskID:   task.ID,
			Filename: name,
			MimeType: mimeType,
			Data:     data,
		})
		if err != nil {
			a.fail("%v", err)
		}
		if att == nil {
			a.fail("task %s not found", task.Citation())
		}
		emit(att, func() {
			fmt.Printf("%s Attached %s (%s, %s) to %s\n", ui.RenderPass("✓"),
				att.Filename, att.MimeType, media.FormatSize(att.Size), ui.RenderAccent(task.Citation()))
			if att.Metadata.Width > 0 {
				fmt.Printf("   %dx%d", att.Metadata.Width, att.Metadata.Height)
				if att.HasThumbnail {
					fmt.Print(", thumbnail stored")
				}
				fmt.Println()
			}
		})
	},
}

// guessMIME prefers the extension and falls back to content sniffing.
func guessMIME(path string, data []byte) string {
	if byExt := mime.TypeByExtension(filepath.Ext(path)); byExt != "" {
		return byExt
	}
	return http.DetectContentType(data)
}

var attachLinkCmd = &cobra.Command{
	Use:   "link <#n> <url>",
	Short: "Attach a link",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		task := a.mustTask(cmd, args[0])
		var og types.AttachmentMeta
		og.OGTitle, _ = cmd.Flags().GetString("title")
		og.OGDescription, _ = cmd.Flags().GetString("description")
		og.OGImage, _ = cmd.Flags().GetString("image")
		og.SiteName, _ = cmd.Flags().GetString("site")

		att, err := a.svc.Attachments.CreateLinkAttachment(cmd.Context(), task.ID, args[1], og)
		if err != nil {
			a.fail("%v", err)
		}
		if att == nil {
			a.fail("task %s not found", task.Citation())
		}
		emit(att, func() {
			fmt.Printf("%s Linked %s to %s\n", ui.RenderPass("✓"), att.URL, ui.RenderAccent(task.Citation()))
		})
	},
}

var attachRenameCmd = &cobra.Command{
	Use:   "rename <id> <filename>",
	Short: "Rename an attachment",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		id, err := parseID("attachment", args[0])
		if err != nil {
			a.fail("%v", err)
		}
		att, err := a.svc.Attachments.UpdateAttachment(cmd.Context(), id, types.AttachmentPatch{Filename: &args[1]})
		if err != nil {
			a.fail("%v", err)
		}
		if att == nil {
			a.fail("attachment %d not found", id)
		}
		emit(att, func() {
			fmt.Printf("%s Renamed attachment %d to %s\n", ui.RenderPass("✓"), att.ID, att.Filename)
		})
	},
}

var attachDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove an attachment",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		id, err := parseID("attachment", args[0])
		if err != nil {
			a.fail("%v", err)
		}
		deleted, err := a.svc.Attachments.DeleteAttachment(cmd.Context(), id)
		if err != nil {
			a.fail("%v", err)
		}
		if !deleted {
			a.fail("attachment %d not found", id)
		}
		fmt.Printf("%s Deleted attachment %d\n", ui.RenderPass("✓"), id)
	},
}

var attachExportCmd = &cobra.Command{
	Use:   "export <id> <path>",
	Short: "Write an attachment's stored bytes to a file",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		id, err := parseID("attachment", args[0])
		if err != nil {
			a.fail("%v", err)
		}
		att, err := a.svc.Attachments.GetAttachmentData(cmd.Context(), id)
		if err != nil {
			a.fail("%v", err)
		}
		if att == nil {
			a.fail("attachment %d not found", id)
		}

		data := att.Data
		if thumb, _ := cmd.Flags().GetBool("thumbnail"); thumb {
			if !att.HasThumbnail {
				a.fail("attachment %d has no thumbnail", id)
			}
			data = att.Thumbnail
		}
		if att.Type == types.AttachmentLink {
			a.fail("attachment %d is a link to %s", id, att.URL)
		}
		if err := os.WriteFile(args[1], data, 0644); err != nil {
			a.fail("failed to write %s: %v", args[1], err)
		}
		fmt.Printf("%s Wrote %s to %s\n", ui.RenderPass("✓"), media.FormatSize(int64(len(data))), args[1])
	},
}

func init() {
	attachAddCmd.Flags().String("mime", "", "MIME type (default: guessed)")
	attachAddCmd.Flags().String("name", "", "stored filename (default: base name of the file)")

	attachLinkCmd.Flags().String("title", "", "preview title")
	attachLinkCmd.Flags().String("description", "", "preview description")
	attachLinkCmd.Flags().String("image", "", "preview image URL")
	attachLinkCmd.Flags().String("site", "", "site name")

	attachExportCmd.Flags().Bool("thumbnail", false, "export the thumbnail instead of the original")

	attachCmd.AddCommand(attachListCmd, attachAddCmd, attachLinkCmd, attachRenameCmd, attachDeleteCmd, attachExportCmd)
	rootCmd.AddCommand(attachCmd)
}
