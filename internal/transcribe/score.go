package transcribe

import (
	"strings"
	"unicode"
)

// Score compares a transcript against a reference by word edit distance.
type Score struct {
	WER           float64 `json:"wer" cbor:"wer"` // (S + I + D) / reference words
	Substitutions int     `json:"substitutions" cbor:"substitutions"`
	Insertions    int     `json:"insertions" cbor:"insertions"`
	Deletions     int     `json:"deletions" cbor:"deletions"`
	RefWords      int     `json:"ref_words" cbor:"ref_words"`
}

type editOp uint8

const (
	opMatch editOp = iota
	opSub
	opDel
	opIns
)

// Compare scores hypothesis against reference. Case and punctuation are
// ignored, so a punctuated transcript scores the same as its raw words.
// An empty reference scores zero.
func Compare(reference, hypothesis string) Score {
	ref := scoreWords(reference)
	hyp := scoreWords(hypothesis)
	if len(ref) == 0 {
		return Score{}
	}

	// cost[i][j] is the distance between ref[:i] and hyp[:j]; ops records
	// the last edit on one cheapest path.
	cost := make([][]int, len(ref)+1)
	ops := make([][]editOp, len(ref)+1)
	for i := range cost {
		cost[i] = make([]int, len(hyp)+1)
		ops[i] = make([]editOp, len(hyp)+1)
		cost[i][0] = i
		ops[i][0] = opDel
	}
	for j := 1; j <= len(hyp); j++ {
		cost[0][j] = j
		ops[0][j] = opIns
	}

	for i := 1; i <= len(ref); i++ {
		for j := 1; j <= len(hyp); j++ {
			if ref[i-1] == hyp[j-1] {
				cost[i][j], ops[i][j] = cost[i-1][j-1], opMatch
				continue
			}
			cost[i][j], ops[i][j] = cost[i-1][j-1]+1, opSub
			if c := cost[i-1][j] + 1; c < cost[i][j] {
				cost[i][j], ops[i][j] = c, opDel
			}
			if c := cost[i][j-1] + 1; c < cost[i][j] {
				cost[i][j], ops[i][j] = c, opIns
			}
		}
	}

	s := Score{RefWords: len(ref)}
	for i, j := len(ref), len(hyp); i > 0 || j > 0; {
		switch ops[i][j] {
		case opMatch:
			i, j = i-1, j-1
		case opSub:
			s.Substitutions++
			i, j = i-1, j-1
		case opDel:
			s.Deletions++
			i--
		case opIns:
			s.Insertions++
			j--
		}
	}
	s.WER = float64(s.Substitutions+s.Insertions+s.Deletions) / float64(s.RefWords)
	return s
}

func scoreWords(s string) []string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
	return strings.Fields(s)
}
