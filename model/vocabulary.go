package model

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/siherrmann/carst/helper"
)

// Vocabulary maps relation ids to their description text and back.
type Vocabulary struct {
	IDToText []string       `json:"id_to_text"`
	TextToID map[string]int `json:"text_to_id"`
}

// NewVocabulary builds a vocabulary where the slice index is the relation id.
func NewVocabulary(texts []string) *Vocabulary {
	v := &Vocabulary{
		IDToText: make([]string, len(texts)),
		TextToID: make(map[string]int, len(texts)),
	}
	for i, text := range texts {
		v.IDToText[i] = text
		if _, ok := v.TextToID[text]; !ok {
			v.TextToID[text] = i
		}
	}
	return v
}

// LoadVocabulary reads one relation per line, either `token` (id = line number)
// or `token<TAB>id`. Ids must form the contiguous range [0, n).
func LoadVocabulary(path string) (*Vocabulary, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, helper.NewError("open vocabulary", err)
	}
	defer file.Close()

	texts := map[int]string{}
	maxID := -1
	line := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		raw := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(raw) == "" {
			continue
		}

		text, id := raw, line
		if idx := strings.LastIndex(raw, "\t"); idx >= 0 {
			id, err = strconv.Atoi(strings.TrimSpace(raw[idx+1:]))
			if err != nil {
				return nil, helper.NewError("parse vocabulary", fmt.Errorf("%w: line %d: invalid id: %v", helper.ErrConfiguration, line+1, err))
			}
			text = raw[:idx]
		}
		if id < 0 {
			return nil, helper.NewError("parse vocabulary", fmt.Errorf("%w: line %d: negative id %d", helper.ErrConfiguration, line+1, id))
		}
		if _, ok := texts[id]; ok {
			return nil, helper.NewError("parse vocabulary", fmt.Errorf("%w: line %d: duplicate id %d", helper.ErrConfiguration, line+1, id))
		}

		texts[id] = text
		if id > maxID {
			maxID = id
		}
		line++
	}
	if err := scanner.Err(); err != nil {
		return nil, helper.NewError("read vocabulary", err)
	}

	ordered := make([]string, maxID+1)
	for id := range ordered {
		text, ok := texts[id]
		if !ok {
			return nil, helper.NewError("load vocabulary", fmt.Errorf("%w: missing relation id %d", helper.ErrConfiguration, id))
		}
		ordered[id] = text
	}

	return NewVocabulary(ordered), nil
}

// Size returns the number of relation ids.
func (v *Vocabulary) Size() int {
	return len(v.IDToText)
}

// Text returns the description of a relation id.
func (v *Vocabulary) Text(id int) (string, bool) {
	if id < 0 || id >= len(v.IDToText) {
		return "", false
	}
	return v.IDToText[id], true
}

// ID returns the relation id of a description.
func (v *Vocabulary) ID(text string) (int, bool) {
	id, ok := v.TextToID[text]
	return id, ok
}

// Covers checks that every id in [0, n) has a description.
func (v *Vocabulary) Covers(n int) error {
	if v.Size() < n {
		return helper.NewError("check vocabulary", fmt.Errorf("%w: vocabulary has %d relations, need %d", helper.ErrConfiguration, v.Size(), n))
	}
	return nil
}
