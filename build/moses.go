package build

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/golang/glog"

	"github.com/kho/g2dmap/ids"
	"github.com/kho/g2dmap/lm"
	"github.com/kho/g2dmap/tm"
	"github.com/kho/g2dmap/vocab"
)

// mosesLine is one " ||| "-delimited Moses phrase-table record: source
// phrase, target phrase, and 4-5 raw feature scores (inverse phrase
// translation probability, inverse lexical weighting, direct phrase
// translation probability, direct lexical weighting, optional phrase
// penalty). Alignment and count fields, if present, are ignored.
type mosesLine struct {
	source   string
	target   string
	features []float64
}

func parseMosesLine(line string) (mosesLine, error) {
	fields := strings.Split(line, "|||")
	if len(fields) < 3 {
		return mosesLine{}, fmt.Errorf("build: malformed Moses phrase-table line (need at least 3 ||| fields): %q", line)
	}
	source := strings.TrimSpace(fields[0])
	target := strings.TrimSpace(fields[1])
	rawFeatures := strings.Fields(fields[2])
	if len(rawFeatures) < 4 {
		return mosesLine{}, fmt.Errorf("build: expected at least 4 feature scores, got %d: %q", len(rawFeatures), line)
	}
	if len(rawFeatures) > tm.NumFeatures {
		rawFeatures = rawFeatures[:tm.NumFeatures]
	}
	features := make([]float64, len(rawFeatures))
	for i, f := range rawFeatures {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return mosesLine{}, fmt.Errorf("build: bad feature score %q in line %q: %w", f, line, err)
		}
		features[i] = v
	}
	return mosesLine{source: source, target: target, features: features}, nil
}

func resolveWordIDs(v vocab.Index, phrase string) []ids.WordID {
	toks := strings.Fields(phrase)
	out := make([]ids.WordID, len(toks))
	for i, t := range toks {
		out[i] = v.GetWordID(t)
	}
	return out
}

// LoadMosesPhraseTable reads a Moses-format phrase table from r with a
// two-pass counting strategy: pass 1 counts surviving targets per source
// phrase, pass 2 builds sized entries. r must support being read twice;
// callers passing a non-seekable stream should buffer it first (e.g. into
// a bytes.Reader).
func LoadMosesPhraseTable(r io.ReadSeeker, v vocab.Index, lmEngine *lm.Engine, params tm.Params) (*tm.Model, error) {
	b := tm.NewCountingBuilder(params, lmEngine)

	if err := mosesPass(r, func(rec mosesLine) error {
		b.CountCandidate(tm.PhraseUID(rec.source), rec.features)
		return nil
	}); err != nil {
		return nil, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("build: rewinding phrase-table reader for pass 2: %w", err)
	}

	currentSource := ""
	sourceOpen := false
	if err := mosesPass(r, func(rec mosesLine) error {
		if rec.source != currentSource {
			if sourceOpen {
				b.FinishSource()
			}
			currentSource = rec.source
			sourceOpen = b.BeginSource(tm.PhraseUID(rec.source))
		}
		if sourceOpen {
			b.AddTarget(rec.target, rec.features, resolveWordIDs(v, rec.target))
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if sourceOpen {
		b.FinishSource()
	}

	model := b.Finish()
	glog.V(1).Infof("build: loaded Moses phrase table: %d source entries", model.Len())
	return model, nil
}

func mosesPass(r io.Reader, fn func(mosesLine) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := parseMosesLine(line)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return sc.Err()
}
