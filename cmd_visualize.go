package main

// ===========================================================================
// ATTENTION VISUALIZATION CLI
// ===========================================================================
//
// A minimal consumer of the attention-trace contract: train briefly, draw
// one sample with tracing enabled, and render each layer/head's query×key
// weight matrix as an ASCII heatmap.
//
// Reading the heatmaps: rows are query positions (the token being
// predicted from), columns are key positions (the tokens attended to).
// Everything above the diagonal is structurally zero — a position cannot
// attend to its future. Darker cells mean more weight; each row sums to 1.
//
// This lives on the collaborator side of the interface: it only consumes
// StepResult/SampleResult data and could be replaced by any other renderer
// without touching the model core.
//
// ===========================================================================

import (
	"flag"
	"fmt"
	"strings"
)

// shades maps a weight in [0, 1] to an ASCII intensity.
var shades = []rune(" .:-=+*#%@")

// RunVisualizeCommand trains a small model, samples once with attention
// tracing, and prints per-head heatmaps.
func RunVisualizeCommand(args []string) error {
	fs := flag.NewFlagSet("visualize", flag.ExitOnError)

	steps := fs.Int("steps", 300, "Training steps before sampling")
	seed := fs.Uint64("seed", 42, "Random seed")
	temperature := fs.Float64("temperature", 0.5, "Sampling temperature")
	dataPath := fs.String("data", "", "Corpus file, one document per line (default: built-in names)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	docs := defaultCorpus
	if *dataPath != "" {
		var err error
		if docs, err = loadCorpus(*dataPath); err != nil {
			return err
		}
	}

	tcfg := DefaultTrainConfig()
	tcfg.NumSteps = *steps

	rng, model, tok, trainer, err := buildSession(docs, DefaultConfig(), tcfg, *seed)
	if err != nil {
		return err
	}

	fmt.Printf("Training %d steps on %d documents (seed %d)...\n", *steps, len(docs), *seed)
	var last StepResult
	for i := 0; i < *steps; i++ {
		if last, err = trainer.Step(); err != nil {
			return err
		}
	}
	fmt.Printf("Final loss: %.4f\n\n", last.Loss)

	gen := NewGenerator(model, tok, rng)
	gen.TraceAttention = true
	sample, err := gen.Sample(*temperature)
	if err != nil {
		return err
	}

	fmt.Printf("Sample: %q (%d tokens)\n\n", sample.Text, len(sample.TokenIDs))
	printAttentionHeatmaps(sample, tok)
	return nil
}

// printAttentionHeatmaps renders every head's dense weight matrix, with
// the sampled characters as axis labels. The query at position p is the
// token *fed in* at p (marker first, then each sampled token).
func printAttentionHeatmaps(sample SampleResult, tok *Tokenizer) {
	// Input tokens per position: marker, then all sampled tokens except
	// the one that ended the sequence.
	labels := []string{markerDisplay}
	for _, ch := range sample.Chars[:len(sample.Chars)-1] {
		labels = append(labels, ch)
	}

	for _, head := range sample.Attention.Heads() {
		fmt.Printf("layer %d, head %d\n", head.Layer, head.Head)

		n := len(head.Weights)
		var b strings.Builder
		b.WriteString("      ")
		for k := 0; k < n && k < len(labels); k++ {
			b.WriteString(labels[k])
			b.WriteByte(' ')
		}
		b.WriteByte('\n')

		for q := 0; q < n; q++ {
			label := "?"
			if q < len(labels) {
				label = labels[q]
			}
			b.WriteString(fmt.Sprintf("  %s | ", label))
			for k := 0; k < n; k++ {
				b.WriteRune(shadeFor(head.Weights[q][k]))
				b.WriteByte(' ')
			}
			b.WriteByte('\n')
		}
		fmt.Println(b.String())
	}
}

// shadeFor maps a weight to its ASCII shade.
func shadeFor(w float64) rune {
	if w < 0 {
		w = 0
	}
	if w > 1 {
		w = 1
	}
	idx := int(w * float64(len(shades)-1))
	return shades[idx]
}
