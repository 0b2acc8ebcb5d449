// Package build implements the model builder: a two-pass text-file loader
// that reads an ARPA-style language model file and a Moses-style phrase
// table into a trie.G2DMap/vocab.Index pair and a tm.Model, respectively.
// It is deliberately the only package that touches raw text: everything
// below it operates on word ids and m-gram payloads.
package build

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/golang/glog"

	"github.com/kho/g2dmap/ids"
	"github.com/kho/g2dmap/trie"
	"github.com/kho/g2dmap/vocab"
)

// log10ToNaturalLog converts an ARPA file's log10 probabilities and
// back-offs to the natural-log units the trie's zero-probability sentinel
// is expressed in.
func log10ToNaturalLog(x float64) float64 { return x * math.Ln10 }

type arpaCounts struct {
	byLevel map[int]int
	maxN    int
}

// readHeader consumes the "\data\" line and the following "ngram K=V"
// count lines. It also consumes the first "\K-grams:" section header, which
// ends the scan and is handed back to the caller inside errSectionHeader.
func readHeader(sc *bufio.Scanner) (*arpaCounts, error) {
	if !sc.Scan() {
		return nil, fmt.Errorf("build: empty ARPA input, expected \\data\\")
	}
	if strings.TrimSpace(sc.Text()) != `\data\` {
		return nil, fmt.Errorf("build: expected \\data\\ header, got %q", sc.Text())
	}
	counts := &arpaCounts{byLevel: map[int]int{}}
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, `\`) && strings.HasSuffix(line, "-grams:") {
			return counts, errSectionHeader{line}
		}
		fields := strings.Fields(line)
		if len(fields) != 2 || fields[0] != "ngram" {
			return nil, fmt.Errorf("build: malformed ngram-count line %q", line)
		}
		kv := strings.SplitN(fields[1], "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("build: malformed ngram-count line %q", line)
		}
		level, err := strconv.Atoi(kv[0])
		if err != nil {
			return nil, fmt.Errorf("build: bad ngram level in %q: %w", line, err)
		}
		count, err := strconv.Atoi(kv[1])
		if err != nil {
			return nil, fmt.Errorf("build: bad ngram count in %q: %w", line, err)
		}
		counts.byLevel[level] = count
		if level > counts.maxN {
			counts.maxN = level
		}
	}
	return counts, fmt.Errorf("build: unexpected end of input while reading \\data\\ section")
}

// errSectionHeader is used internally to unwind readHeader's scan loop once
// it has consumed one line too many (the first section header); the
// orchestrator re-consumes it as the opening header of section 1.
type errSectionHeader struct{ line string }

func (e errSectionHeader) Error() string { return "build: section header " + e.line }

func sectionLevel(header string) (int, error) {
	body := strings.TrimSuffix(strings.TrimPrefix(header, `\`), "-grams:")
	n, err := strconv.Atoi(body)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("build: malformed section header %q", header)
	}
	return n, nil
}

// arpaLine is a parsed "log10_prob \t w1 ... wm \t [back_off]" record.
type arpaLine struct {
	logProb float64
	tokens  []string
	backOff float64
	hasBO   bool
}

func parseARPALine(line string) (arpaLine, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return arpaLine{}, fmt.Errorf("build: malformed m-gram line %q", line)
	}
	logProb, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return arpaLine{}, fmt.Errorf("build: bad log-probability in %q: %w", line, err)
	}
	rest := fields[1:]
	// The last field is a back-off weight only if it parses as a float *and*
	// there are at least 2 remaining fields (so at least one token remains).
	hasBO := false
	backOff := 0.0
	if len(rest) >= 2 {
		if bo, err := strconv.ParseFloat(rest[len(rest)-1], 64); err == nil {
			backOff = bo
			hasBO = true
			rest = rest[:len(rest)-1]
		}
	}
	if len(rest) == 0 {
		return arpaLine{}, fmt.Errorf("build: m-gram line has no tokens: %q", line)
	}
	return arpaLine{logProb: logProb, tokens: rest, backOff: backOff, hasBO: hasBO}, nil
}

// LoadARPA reads an ARPA-format language model from r, registering surface
// tokens into v (a fresh, empty MutableIndex; the reserved tokens <s>/</s>
// are registered like any other unigram) and building a trie.G2DMap sized
// by the file's own ngram-count header. cfg.N is overwritten by the
// header's max level; callers only need to set load-factor/bitmap-cache
// fields. Level sections must appear in increasing order (1, 2, ..., N),
// each fully loaded and closed out (trie.G2DMap.PostGrams) before the next
// begins.
func LoadARPA(r io.Reader, v vocab.MutableIndex, cfg trie.Config) (*trie.G2DMap, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	counts, err := readHeader(sc)
	hdrErr, ok := err.(errSectionHeader)
	if !ok {
		return nil, err
	}
	cfg.N = counts.maxN
	if cfg.N < 1 {
		return nil, fmt.Errorf("build: ARPA header declares no ngram levels")
	}
	if v.NeedsCounting() {
		return nil, fmt.Errorf("build: ARPA loader needs a word index that does not require a counting pass (ARPA files carry no raw word frequencies); use vocab.Basic or an Optimizing wrapping it")
	}
	v.Reserve(counts.byLevel[1])

	tr := trie.New(cfg)
	nextHeader := hdrErr.line
	for level := 1; level <= cfg.N; level++ {
		got, err := sectionLevel(nextHeader)
		if err != nil {
			return nil, err
		}
		if got != level {
			return nil, fmt.Errorf("build: expected \\%d-grams: section, got %q", level, nextHeader)
		}

		type pending struct {
			wordIDs []ids.WordID
			payload trie.Payload
		}
		var buffered []pending // only used for level 1, before PreAllocate can run

		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, `\`) {
				nextHeader = line
				break
			}
			rec, err := parseARPALine(line)
			if err != nil {
				return nil, err
			}
			wordIDs := make([]ids.WordID, len(rec.tokens))
			for i, tok := range rec.tokens {
				if level == 1 {
					wordIDs[i] = v.RegisterWord(tok)
				} else {
					wordIDs[i] = v.GetWordID(tok)
				}
			}
			if len(wordIDs) != level {
				return nil, fmt.Errorf("build: %d-gram line has %d tokens: %q", level, len(wordIDs), line)
			}
			payload := trie.Payload{LogProb: float32(log10ToNaturalLog(rec.logProb))}
			if rec.hasBO {
				payload.BackOff = float32(log10ToNaturalLog(rec.backOff))
			}
			if level == 1 {
				buffered = append(buffered, pending{wordIDs, payload})
			} else {
				tr.AddMGram(level, wordIDs, payload)
			}
		}

		if level == 1 {
			if v.NeedsPostActions() {
				v.DoPostActions()
			}
			tr.PreAllocate(v.Bound(), counts.byLevel)
			for _, p := range buffered {
				tr.AddMGram(1, p.wordIDs, p.payload)
			}
		}
		tr.PostGrams(level)
		glog.V(1).Infof("build: loaded %d-grams section", level)
	}
	if strings.TrimSpace(nextHeader) != `\end\` {
		return nil, fmt.Errorf("build: expected \\end\\, got %q", nextHeader)
	}
	return tr, nil
}
