package graph

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/siherrmann/carst/helper"
)

// InversePrefix marks the reversed direction of a relation.
const InversePrefix = "inv_"

// Triple is a raw (head, relation, tail) fact with entity and relation names.
type Triple struct {
	Head     string `json:"head"`
	Relation string `json:"relation"`
	Tail     string `json:"tail"`
}

// Inverse returns the triple read from tail to head.
func (t Triple) Inverse() Triple {
	return Triple{Head: t.Tail, Relation: Inverse(t.Relation), Tail: t.Head}
}

// Inverse returns the name of the reversed relation.
func Inverse(relation string) string {
	return InversePrefix + relation
}

// IsInversePair reports whether one relation is the inverse of the other.
func IsInversePair(a, b string) bool {
	return a == Inverse(b) || b == Inverse(a)
}

// ParseTriples reads one `head relation tail` triple per line, separated by
// tabs or spaces. Blank lines are skipped.
func ParseTriples(r io.Reader) ([]Triple, error) {
	var triples []Triple
	line := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 3 {
			return nil, helper.NewError("parse triples", fmt.Errorf("%w: line %d has %d fields, want 3", helper.ErrConfiguration, line, len(fields)))
		}
		triples = append(triples, Triple{Head: fields[0], Relation: fields[1], Tail: fields[2]})
	}
	if err := scanner.Err(); err != nil {
		return nil, helper.NewError("parse triples", err)
	}
	return triples, nil
}

// LoadTriples reads a triple file, see ParseTriples.
func LoadTriples(path string) ([]Triple, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, helper.NewError("open triples", err)
	}
	defer file.Close()

	return ParseTriples(file)
}
