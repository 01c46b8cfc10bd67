package main

import "fmt"

// ClueState tracks per-clue progress. It lives on the room, not the
// client, so every player agrees on which clues are exhausted.
type ClueState string

const (
	ClueUnopened ClueState = "unopened"
	ClueRevealed ClueState = "revealed"
	ClueAnswered ClueState = "answered"
)

type Clue struct {
	ID       string `json:"id"`
	Value    int    `json:"value"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type Category struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Clues []Clue `json:"clues"`
}

const (
	maxCategories     = 8
	maxCluesPerColumn = 5
)

// questionBank backs the default 3x5 board every new room starts with.
var questionBank = []struct {
	title     string
	questions [maxCluesPerColumn][2]string
}{
	{
		title: "CYBER SPACE",
		questions: [maxCluesPerColumn][2]string{
			{"This planet is known as the Red Planet.", "Mars"},
			{"The closest star to Earth.", "The Sun"},
			{"Name of the galaxy we reside in.", "Milky Way"},
			{"First human to travel into space.", "Yuri Gagarin"},
			{"This black hole lies at the center of our galaxy.", "Sagittarius A*"},
		},
	},
	{
		title: "RETRO TECH",
		questions: [maxCluesPerColumn][2]string{
			{"The company that released the Walkman in 1979.", "Sony"},
			{"Standard floppy disk storage capacity.", "1.44 MB"},
			{"Predecessor to the internet.", "ARPANET"},
			{"The first popular web browser.", "Mosaic"},
			{"Year the first iPhone was released.", "2007"},
		},
	},
	{
		title: "NETRUNNER LORE",
		questions: [maxCluesPerColumn][2]string{
			{"A glitch in the system.", "Bug"},
			{"Protocol for secure communication.", "HTTPS"},
			{"Binary representation of decimal 2.", "10"},
			{"Language used to style web pages.", "CSS"},
			{"The brain of the computer.", "CPU"},
		},
	},
}

// defaultBoard builds the built-in board with deterministic ids, so a
// freshly created room always looks the same.
func defaultBoard() []Category {
	board := make([]Category, 0, len(questionBank))

	for catIndex, cat := range questionBank {
		category := Category{
			ID:    fmt.Sprintf("cat-%d", catIndex),
			Title: cat.title,
			Clues: make([]Clue, 0, len(cat.questions)),
		}

		for clueIndex, q := range cat.questions {
			category.Clues = append(category.Clues, Clue{
				ID:       fmt.Sprintf("clue-%d-%d", catIndex, clueIndex),
				Value:    (clueIndex + 1) * 100,
				Question: q[0],
				Answer:   q[1],
			})
		}

		board = append(board, category)
	}

	return board
}

// validateBoard vets a wholesale board replacement from the editor.
func validateBoard(board []Category) error {
	if len(board) == 0 {
		return errInvalidCommand("BOARD IS EMPTY")
	}
	if len(board) > maxCategories {
		return errInvalidCommand("TOO MANY CATEGORIES")
	}

	seen := make(map[string]bool)

	for _, category := range board {
		if category.ID == "" {
			return errInvalidCommand("CATEGORY ID REQUIRED")
		}
		if category.Title == "" {
			return errInvalidCommand("CATEGORY TITLE REQUIRED")
		}
		if len(category.Clues) == 0 || len(category.Clues) > maxCluesPerColumn {
			return errInvalidCommand("CATEGORIES NEED 1-5 CLUES")
		}

		for _, clue := range category.Clues {
			if clue.ID == "" {
				return errInvalidCommand("CLUE ID REQUIRED")
			}
			if seen[clue.ID] {
				return errInvalidCommand("DUPLICATE CLUE ID")
			}
			seen[clue.ID] = true

			if clue.Value <= 0 {
				return errInvalidCommand("CLUE VALUE MUST BE POSITIVE")
			}
			if clue.Question == "" {
				return errInvalidCommand("CLUE QUESTION REQUIRED")
			}
		}
	}

	return nil
}

func findClue(board []Category, clueID string) *Clue {
	for i := range board {
		for j := range board[i].Clues {
			if board[i].Clues[j].ID == clueID {
				return &board[i].Clues[j]
			}
		}
	}
	return nil
}

func cloneBoard(board []Category) []Category {
	out := make([]Category, len(board))
	for i, category := range board {
		out[i] = category
		out[i].Clues = append([]Clue(nil), category.Clues...)
	}
	return out
}
