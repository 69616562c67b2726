package chunker

import (
	"strings"
	"testing"
)

func TestPlanText_SingleShortSentence(t *testing.T) {
	p := PlanText("Hello, world.", 200)
	if len(p.Chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(p.Chunks))
	}
	if p.Chunks[0].Text != "Hello, world." {
		t.Fatalf("unexpected chunk text: %q", p.Chunks[0].Text)
	}
}

func TestPlanText_EveryChunkUnderCap(t *testing.T) {
	text := strings.Repeat("This is a sentence with several words in it. ", 40)
	p := PlanText(text, 200)
	if len(p.Chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(p.Chunks))
	}
	for i, c := range p.Chunks {
		if c.Tokens > 200 {
			t.Fatalf("chunk %d exceeds token cap: %d", i, c.Tokens)
		}
	}
}

func TestPlanText_OverlongSentenceSplitsOnWords(t *testing.T) {
	words := make([]string, 0, 300)
	for i := 0; i < 300; i++ {
		words = append(words, "word")
	}
	sentence := strings.Join(words, " ") + "."
	if len(sentence) <= 600 {
		t.Fatalf("test sentence too short: %d", len(sentence))
	}
	p := PlanText(sentence, 200)
	for i, c := range p.Chunks {
		if len(c.Text) > 600 {
			t.Fatalf("chunk %d too long: %d chars", i, len(c.Text))
		}
	}
	if len(p.Chunks) < 2 {
		t.Fatalf("expected the overlong sentence to split into multiple chunks")
	}
}

func TestPlanText_OverlongWordEmittedAlone(t *testing.T) {
	longWord := strings.Repeat("a", 700)
	text := "prefix " + longWord + " suffix."
	p := PlanText(text, 200)
	found := false
	for _, c := range p.Chunks {
		if strings.Contains(c.Text, longWord) {
			found = true
			if !strings.HasPrefix(strings.TrimSuffix(c.Text, "."), longWord) && c.Text != longWord+"." {
				// the long word must not be split mid-word
				if !strings.Contains(c.Text, longWord) {
					t.Fatalf("long word was split: %q", c.Text)
				}
			}
		}
	}
	if !found {
		t.Fatalf("expected the overlong word to appear intact in some chunk")
	}
}

func TestPlanText_EmptyInput(t *testing.T) {
	p := PlanText("", 200)
	if len(p.Chunks) != 0 {
		t.Fatalf("expected no chunks for empty input, got %d", len(p.Chunks))
	}
}

func TestPlanText_DiscardsEmptyFragments(t *testing.T) {
	p := PlanText("One.   Two.", 200)
	if len(p.Chunks) == 0 {
		t.Fatalf("expected at least one chunk")
	}
	for _, c := range p.Chunks {
		if c.Text == "" {
			t.Fatalf("unexpected empty fragment")
		}
	}
}
