package main

import (
	"math"
	"testing"
)

// newTestTrainer wires a full session over the given corpus.
func newTestTrainer(t *testing.T, corpus []string, cfg TrainConfig, seed uint64) (*Trainer, *Model, *Tokenizer, *RNG) {
	t.Helper()
	rng := NewRNG(seed)
	tok, err := NewTokenizer(corpus)
	if err != nil {
		t.Fatalf("tokenizer: %v", err)
	}
	g := NewGraph()
	model, err := NewModel(g, DefaultConfig(), tok.VocabSize(), rng)
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	trainer, err := NewTrainer(model, tok, corpus, cfg, rng)
	if err != nil {
		t.Fatalf("trainer: %v", err)
	}
	return trainer, model, tok, rng
}

func TestStepLossFiniteAndPositive(t *testing.T) {
	cfg := DefaultTrainConfig()
	cfg.NumSteps = 10
	trainer, _, _, _ := newTestTrainer(t, []string{"ann", "amy"}, cfg, 42)

	res, err := trainer.Step()
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if math.IsNaN(res.Loss) || math.IsInf(res.Loss, 0) || res.Loss <= 0 {
		t.Errorf("expected finite positive loss, got %g", res.Loss)
	}
	if res.Step != 1 {
		t.Errorf("expected step count 1, got %d", res.Step)
	}
	if res.Document == "" {
		t.Error("expected the trained document in the result")
	}
}

// TestInitialLossNearUniform: before training, per-token loss should be
// close to ln(vocabSize) — the model has no reason to prefer any token.
func TestInitialLossNearUniform(t *testing.T) {
	cfg := DefaultTrainConfig()
	cfg.NumSteps = 10
	trainer, model, _, _ := newTestTrainer(t, []string{"ab"}, cfg, 42)

	res, err := trainer.Step()
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	want := math.Log(float64(model.VocabSize()))
	if math.Abs(res.Loss-want) > 0.5 {
		t.Errorf("initial loss %g too far from ln(vocab)=%g", res.Loss, want)
	}
}

// TestLearnsSingleDocument: 500 steps on the corpus ["ab"] must drive the
// loss from ≈ln(3) to almost zero — the sequence is fully deterministic.
func TestLearnsSingleDocument(t *testing.T) {
	cfg := DefaultTrainConfig()
	cfg.NumSteps = 500
	trainer, _, _, _ := newTestTrainer(t, []string{"ab"}, cfg, 42)

	var last StepResult
	var err error
	for i := 0; i < 500; i++ {
		if last, err = trainer.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if last.Loss >= 0.1 {
		t.Errorf("expected loss < 0.1 after 500 steps, got %g", last.Loss)
	}
	if trainer.StepCount() != 500 {
		t.Errorf("expected 500 completed steps, got %d", trainer.StepCount())
	}
}

func TestLearningRateDecay(t *testing.T) {
	cfg := DefaultTrainConfig()
	cfg.NumSteps = 100
	trainer, _, _, _ := newTestTrainer(t, []string{"ab"}, cfg, 1)

	if got := trainer.learningRate(0); got != cfg.LearningRate {
		t.Errorf("lr at step 0: got %g, want base %g", got, cfg.LearningRate)
	}
	if got := trainer.learningRate(100); got != cfg.MinLearningRate {
		t.Errorf("lr at target: got %g, want floor %g", got, cfg.MinLearningRate)
	}
	if got := trainer.learningRate(500); got != cfg.MinLearningRate {
		t.Errorf("lr past target must clamp to floor, got %g", got)
	}

	mid := trainer.learningRate(50)
	if mid <= cfg.MinLearningRate || mid >= cfg.LearningRate {
		t.Errorf("lr at midpoint %g outside (floor, base)", mid)
	}
}

// TestGradientsZeroedBetweenSteps: the trainer owns gradient reset; after
// a step every parameter gradient must be zero and the graph truncated.
func TestGradientsZeroedBetweenSteps(t *testing.T) {
	cfg := DefaultTrainConfig()
	cfg.NumSteps = 10
	trainer, model, _, _ := newTestTrainer(t, []string{"ann"}, cfg, 9)

	g := model.Graph()
	base := g.Len()

	if _, err := trainer.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}

	for i, p := range model.Params() {
		if g.Grad(p) != 0 {
			t.Fatalf("parameter %d gradient not zeroed after step: %g", i, g.Grad(p))
		}
	}
	if g.Len() != base {
		t.Errorf("graph not truncated after step: %d nodes, want %d", g.Len(), base)
	}
}

func TestDocumentCycling(t *testing.T) {
	cfg := DefaultTrainConfig()
	cfg.NumSteps = 10
	trainer, _, _, _ := newTestTrainer(t, []string{"ann", "amy", "mae"}, cfg, 42)

	// Across 6 steps each of the 3 documents is trained exactly twice,
	// in a cycle over the shuffled order.
	counts := make(map[string]int)
	var order []string
	for i := 0; i < 6; i++ {
		res, err := trainer.Step()
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		counts[res.Document]++
		order = append(order, res.Document)
	}
	for _, doc := range []string{"ann", "amy", "mae"} {
		if counts[doc] != 2 {
			t.Errorf("document %q trained %d times, want 2", doc, counts[doc])
		}
	}
	for i := 0; i < 3; i++ {
		if order[i] != order[i+3] {
			t.Errorf("cycle broken: step %d trained %q, step %d trained %q", i, order[i], i+3, order[i+3])
		}
	}
}

// TestTrainingDeterminism: two independent sessions with the same seed
// follow bit-identical loss trajectories.
func TestTrainingDeterminism(t *testing.T) {
	run := func() []float64 {
		cfg := DefaultTrainConfig()
		cfg.NumSteps = 20
		trainer, _, _, _ := newTestTrainer(t, []string{"ann", "amy"}, cfg, 7)
		losses := make([]float64, 20)
		for i := range losses {
			res, err := trainer.Step()
			if err != nil {
				t.Fatalf("step %d: %v", i, err)
			}
			losses[i] = res.Loss
		}
		return losses
	}

	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("loss diverged at step %d: %.17g vs %.17g", i, a[i], b[i])
		}
	}
}

func TestTrainerAttentionTrace(t *testing.T) {
	cfg := DefaultTrainConfig()
	cfg.NumSteps = 10
	trainer, model, _, _ := newTestTrainer(t, []string{"ann"}, cfg, 5)

	res, err := trainer.Step()
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if res.Attention != nil {
		t.Error("trace should be nil unless requested")
	}

	trainer.TraceAttention = true
	res, err = trainer.Step()
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if res.Attention == nil {
		t.Fatal("expected an attention trace")
	}
	// "ann" encodes to 5 ids -> 4 prediction positions, one row each.
	if got := res.Attention.Positions(); got != 4 {
		t.Errorf("expected 4 recorded positions, got %d", got)
	}
	if got := len(res.Attention.Heads()); got != model.Config().NumLayers*model.Config().NumHeads {
		t.Errorf("expected %d head traces, got %d", model.Config().NumLayers*model.Config().NumHeads, got)
	}
}

// BenchmarkTrainStep measures a full step (forward, backward, Adam) on the
// default architecture with a short document.
func BenchmarkTrainStep(b *testing.B) {
	rng := NewRNG(42)
	tok, err := NewTokenizer([]string{"benchmark"})
	if err != nil {
		b.Fatalf("tokenizer: %v", err)
	}
	g := NewGraph()
	model, err := NewModel(g, DefaultConfig(), tok.VocabSize(), rng)
	if err != nil {
		b.Fatalf("model: %v", err)
	}
	cfg := DefaultTrainConfig()
	cfg.NumSteps = 1 << 30 // keep the schedule flat for the benchmark
	trainer, err := NewTrainer(model, tok, []string{"benchmark"}, cfg, rng)
	if err != nil {
		b.Fatalf("trainer: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := trainer.Step(); err != nil {
			b.Fatal(err)
		}
	}
}

func TestTrainConfigValidate(t *testing.T) {
	bad := []TrainConfig{
		{LearningRate: 0, NumSteps: 10, Beta1: 0.9, Beta2: 0.99},
		{LearningRate: 0.01, NumSteps: 0, Beta1: 0.9, Beta2: 0.99},
		{LearningRate: 0.01, NumSteps: 10, Beta1: 1.0, Beta2: 0.99},
		{LearningRate: 0.01, MinLearningRate: 0.1, NumSteps: 10, Beta1: 0.9, Beta2: 0.99},
	}
	for _, cfg := range bad {
		if err := cfg.Validate(); err == nil {
			t.Errorf("expected validation error for %+v", cfg)
		}
	}
	if err := DefaultTrainConfig().Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}
