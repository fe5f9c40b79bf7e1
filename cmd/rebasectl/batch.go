package main

import (
	"bufio"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"rebase/pkg/client"

	"github.com/spf13/cobra"
)

var pairExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// pair is an image with the prompt text file sharing its stem.
type pair struct {
	Image string
	Text  string
}

type batchOptions struct {
	gens      int
	delay     time.Duration
	settle    time.Duration
	randomize bool
	yes       bool
}

func NewBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <directory>",
		Short: "Send every image/text pair in a directory as prompt + generate",
		Long: `Scan a directory for images with a matching .txt prompt file. For each pair the
image resolution and prompt are sent as prompt_replace, followed by a generate event.`,
		Args: cobra.ExactArgs(1),
		RunE: runBatch,
	}

	cmd.Flags().Int("gens", 0, "Generations per image, 1-8 (asked for when omitted)")
	cmd.Flags().Duration("delay", 3*time.Second, "Delay between pairs")
	cmd.Flags().Duration("settle", 500*time.Millisecond, "Delay between prompt and generate")
	cmd.Flags().Bool("randomize", false, "Shuffle the pairs before processing")
	cmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func runBatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("'%s' is not a valid directory", dir)
	}

	opts := batchOptions{}
	opts.gens, _ = cmd.Flags().GetInt("gens")
	opts.delay, _ = cmd.Flags().GetDuration("delay")
	opts.settle, _ = cmd.Flags().GetDuration("settle")
	opts.randomize, _ = cmd.Flags().GetBool("randomize")
	opts.yes, _ = cmd.Flags().GetBool("yes")

	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	if opts.gens == 0 {
		answer, err := ask(in, out, "How many generations per image? (1-8): ")
		if err != nil {
			return err
		}
		if opts.gens, err = strconv.Atoi(answer); err != nil {
			return client.ErrInvalidCount
		}
	}
	if opts.gens < client.MinGenerate || opts.gens > client.MaxGenerate {
		return client.ErrInvalidCount
	}

	pairs, missing, err := findPairs(dir)
	if err != nil {
		return err
	}
	if opts.randomize {
		rand.Shuffle(len(pairs), func(i, j int) { pairs[i], pairs[j] = pairs[j], pairs[i] })
	}

	fmt.Fprintf(out, "Found %d valid image/text pairs\n", len(pairs))
	if len(missing) > 0 {
		fmt.Fprintf(out, "Found %d images without corresponding text files:\n", len(missing))
		for _, img := range preview(missing) {
			fmt.Fprintf(out, "  - %s\n", filepath.Base(img))
		}
	}
	if len(pairs) == 0 {
		fmt.Fprintln(out, "No valid pairs found.")
		return nil
	}

	fmt.Fprintf(out, "Generations per image: %d\n", opts.gens)
	fmt.Fprintf(out, "Total generations: %d\n", len(pairs)*opts.gens)

	if !opts.yes {
		answer, err := ask(in, out, fmt.Sprintf("Process %d pairs? (y/N): ", len(pairs)))
		if err != nil {
			return err
		}
		if a := strings.ToLower(answer); a != "y" && a != "yes" {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	ok, failed := processPairs(cmd.Context(), clientFor(cmd), out, pairs, opts)

	fmt.Fprintln(out, strings.Repeat("=", 50))
	fmt.Fprintln(out, "Batch processing complete!")
	fmt.Fprintf(out, "Successful: %d\n", ok)
	fmt.Fprintf(out, "Failed: %d\n", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d pairs failed", failed, len(pairs))
	}
	return nil
}

func processPairs(ctx context.Context, c *client.Client, out io.Writer, pairs []pair, opts batchOptions) (ok, failed int) {
	for i, p := range pairs {
		fmt.Fprintf(out, "[%d/%d] Processing %s\n", i+1, len(pairs), filepath.Base(p.Image))

		width, height, err := imageSize(p.Image)
		if err != nil {
			fmt.Fprintf(out, "  failed to read image resolution: %v\n", err)
			failed++
			continue
		}
		prompt, err := readPrompt(p.Text)
		if err != nil {
			fmt.Fprintf(out, "  failed to read prompt: %v\n", err)
			failed++
			continue
		}

		fmt.Fprintf(out, "  resolution %dx%d, prompt %q\n", width, height, truncate(prompt, 100))
		detail := client.PromptReplaceDetail{
			PositivePrompt: prompt,
			Resolution:     &client.Resolution{Width: width, Height: height},
		}
		if _, err := c.PromptReplace(ctx, detail); err != nil {
			fmt.Fprintf(out, "  failed to send prompt: %v\n", err)
			failed++
			continue
		}

		if err := sleep(ctx, opts.settle); err != nil {
			return ok, failed + len(pairs) - i
		}

		if _, err := c.Generate(ctx, opts.gens); err != nil {
			fmt.Fprintf(out, "  failed to send generate: %v\n", err)
			failed++
			continue
		}
		fmt.Fprintln(out, "  submitted")
		ok++

		if i < len(pairs)-1 {
			if err := sleep(ctx, opts.delay); err != nil {
				return ok, failed + len(pairs) - i - 1
			}
		}
	}
	return ok, failed
}

// findPairs returns image/text pairs sorted by image path, plus the images
// that have no prompt file.
func findPairs(dir string) ([]pair, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	var pairs []pair
	var missing []string
	for _, e := range entries {
		if e.IsDir() || !pairExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		img := filepath.Join(dir, e.Name())
		txt := strings.TrimSuffix(img, filepath.Ext(img)) + ".txt"
		if _, err := os.Stat(txt); err == nil {
			pairs = append(pairs, pair{Image: img, Text: txt})
		} else {
			missing = append(missing, img)
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Image < pairs[j].Image })
	return pairs, missing, nil
}

func imageSize(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

func readPrompt(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("%s is empty", filepath.Base(path))
	}
	return prompt, nil
}

func ask(in *bufio.Reader, out io.Writer, question string) (string, error) {
	fmt.Fprint(out, question)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("no answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func preview(items []string) []string {
	if len(items) > 5 {
		return items[:5]
	}
	return items
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
