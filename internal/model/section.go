package model

import (
	"errors"
	"strings"
)

// Section is a fixed cohort code.
type Section string

const (
	SectionLEFR  Section = "LEFR"
	SectionLESM  Section = "LESM"
	SectionLESVT Section = "LESVT"
	SectionLEAG  Section = "LEAG"
	SectionLEPS  Section = "LEPS"
)

// Sections lists every known section code.
var Sections = []Section{SectionLEFR, SectionLESM, SectionLESVT, SectionLEAG, SectionLEPS}

var ErrUnknownSection = errors.New("unknown section")

// Valid reports whether s is one of the fixed section codes.
func (s Section) Valid() bool {
	for _, known := range Sections {
		if s == known {
			return true
		}
	}
	return false
}

// ParseSection accepts a section code in any letter case.
func ParseSection(raw string) (Section, error) {
	s := Section(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", ErrUnknownSection
	}
	return s, nil
}
