package main

import (
	"testing"
)

func TestDefaultBoardShape(t *testing.T) {
	board := defaultBoard()

	if len(board) != 3 {
		t.Fatalf("expected 3 categories, got %d", len(board))
	}

	seen := make(map[string]bool)

	for _, category := range board {
		if category.Title == "" {
			t.Fatalf("category %q has no title", category.ID)
		}
		if len(category.Clues) != 5 {
			t.Fatalf("category %q has %d clues, expected 5", category.Title, len(category.Clues))
		}
		for i, clue := range category.Clues {
			if want := (i + 1) * 100; clue.Value != want {
				t.Fatalf("clue %q has value %d, expected %d", clue.ID, clue.Value, want)
			}
			if seen[clue.ID] {
				t.Fatalf("duplicate clue id %q", clue.ID)
			}
			seen[clue.ID] = true
		}
	}
}

func TestDefaultBoardDeterministic(t *testing.T) {
	a := defaultBoard()
	b := defaultBoard()

	for i := range a {
		if a[i].ID != b[i].ID || a[i].Title != b[i].Title {
			t.Fatalf("boards differ at category %d", i)
		}
		for j := range a[i].Clues {
			if a[i].Clues[j] != b[i].Clues[j] {
				t.Fatalf("boards differ at clue %d/%d", i, j)
			}
		}
	}
}

func TestValidateBoard(t *testing.T) {
	valid := func() []Category {
		return []Category{
			{
				ID:    "cat-a",
				Title: "HISTORY",
				Clues: []Clue{
					{ID: "c1", Value: 100, Question: "q1", Answer: "a1"},
					{ID: "c2", Value: 200, Question: "q2", Answer: "a2"},
				},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(board []Category) []Category
		wantErr bool
	}{
		{
			name:   "valid board",
			mutate: func(b []Category) []Category { return b },
		},
		{
			name:    "empty board",
			mutate:  func(b []Category) []Category { return nil },
			wantErr: true,
		},
		{
			name: "missing category title",
			mutate: func(b []Category) []Category {
				b[0].Title = ""
				return b
			},
			wantErr: true,
		},
		{
			name: "missing category id",
			mutate: func(b []Category) []Category {
				b[0].ID = ""
				return b
			},
			wantErr: true,
		},
		{
			name: "no clues",
			mutate: func(b []Category) []Category {
				b[0].Clues = nil
				return b
			},
			wantErr: true,
		},
		{
			name: "too many clues",
			mutate: func(b []Category) []Category {
				for i := 0; i < 6; i++ {
					b[0].Clues = append(b[0].Clues, Clue{ID: string(rune('x' + i)), Value: 100, Question: "q"})
				}
				return b
			},
			wantErr: true,
		},
		{
			name: "duplicate clue id",
			mutate: func(b []Category) []Category {
				b[0].Clues[1].ID = b[0].Clues[0].ID
				return b
			},
			wantErr: true,
		},
		{
			name: "non-positive value",
			mutate: func(b []Category) []Category {
				b[0].Clues[0].Value = 0
				return b
			},
			wantErr: true,
		},
		{
			name: "missing question",
			mutate: func(b []Category) []Category {
				b[0].Clues[0].Question = ""
				return b
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateBoard(tt.mutate(valid()))
			if tt.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCloneBoardIsIndependent(t *testing.T) {
	original := defaultBoard()
	copied := cloneBoard(original)

	copied[0].Title = "CHANGED"
	copied[0].Clues[0].Question = "CHANGED"

	if original[0].Title == "CHANGED" {
		t.Fatal("clone shares category storage with original")
	}
	if original[0].Clues[0].Question == "CHANGED" {
		t.Fatal("clone shares clue storage with original")
	}
}

func TestFindClue(t *testing.T) {
	board := defaultBoard()

	if clue := findClue(board, "clue-1-2"); clue == nil {
		t.Fatal("expected to find clue-1-2")
	} else if clue.Value != 300 {
		t.Fatalf("expected value 300, got %d", clue.Value)
	}

	if clue := findClue(board, "nope"); clue != nil {
		t.Fatalf("expected nil for unknown clue, got %q", clue.ID)
	}
}
