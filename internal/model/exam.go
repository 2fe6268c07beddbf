package model

import "time"

type ExamType string

const (
	ExamText ExamType = "text"
	ExamFile ExamType = "file"
)

// Exam is a published exam, stored in the exams list.
type Exam struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Section       Section    `json:"section"`
	PublishedAt   time.Time  `json:"publishedAt"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
	Type          ExamType   `json:"type"`
	Content       string     `json:"content,omitempty"`
	FileRef       string     `json:"fileRef,omitempty"`
	FileName      string     `json:"fileName,omitempty"`
	ProfessorID   string     `json:"professorId"`
	ProfessorName string     `json:"professorName"`
	Subject       string     `json:"subject"`
}

// Language is a locale code stored at the language key.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageFrench  Language = "fr"
	LanguageArabic  Language = "ar"
)

func (l Language) Valid() bool {
	return l == LanguageEnglish || l == LanguageFrench || l == LanguageArabic
}
