package model

import "time"

// Language and difficulty tags as stored on the problems table.
const (
	LanguagePython = "PYTHON"
	LanguageJava   = "JAVA"
	LanguageCpp    = "CPP"

	DifficultyEasy   = "EASY"
	DifficultyMedium = "MEDIUM"
	DifficultyHard   = "HARD"
)

// Problem is an exercise authored outside this pipeline and consumed
// read-only: the evaluation flow needs its language tag and test code,
// nothing here ever writes a problem.
type Problem struct {
	ID           int64     `json:"id"`
	AuthorID     int64     `json:"author_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Language     string    `json:"language"`
	Difficulty   string    `json:"difficulty"`
	StartingCode string    `json:"starting_code"`
	TestCode     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// ValidLanguage reports whether lang is a supported language tag.
func ValidLanguage(lang string) bool {
	switch lang {
	case LanguagePython, LanguageJava, LanguageCpp:
		return true
	}
	return false
}
