package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var paragraphsCmd = &cobra.Command{
	Use:   "paragraphs <file>",
	Short: "Print the classified paragraph sequence",
	Args:  cobra.ExactArgs(1),
	RunE:  runParagraphs,
}

var assetsCmd = &cobra.Command{
	Use:   "assets <file>",
	Short: "Print extracted images and their anchors",
	Args:  cobra.ExactArgs(1),
	RunE:  runAssets,
}

func runParagraphs(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	doc, err := extractFile(ctx, newLogger(), args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(doc.Paragraphs)
	}

	for _, p := range doc.Paragraphs {
		kind := string(p.Type)
		if p.HeadingLevel > 0 {
			kind = fmt.Sprintf("%s/%d", kind, p.HeadingLevel)
		}
		fmt.Printf("%4d  %-12s  %s\n", p.ID, kind, truncate(p.Text, 80))
	}
	return nil
}

func runAssets(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	doc, err := extractFile(ctx, newLogger(), args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(map[string]any{
			"assets":     doc.Assets,
			"unassigned": doc.Unassigned,
		})
	}

	if len(doc.Assets) == 0 {
		fmt.Println("No images found")
		return nil
	}
	for _, a := range doc.Assets {
		fmt.Printf("%3d  %-20s  %-5s  %8d bytes", a.Index, a.FileName, a.Format, a.Size)
		if a.Width > 0 {
			fmt.Printf("  %dx%d", a.Width, a.Height)
		}
		if a.Anchored() {
			fmt.Printf("  -> paragraph %d via %s", a.ParagraphIndex(), a.Position.Method)
		} else {
			fmt.Print("  unassigned")
		}
		fmt.Println()
	}
	return nil
}
