package history

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/doeshing/conv/internal/domain"
)

// Record labels. A record is one labeled line per field followed by a blank line.
const (
	labelQuestion = "Question: "
	labelAnswer   = "Answer: "
	labelStatus   = "Status: "
	labelTime     = "Time: "
)

var fieldEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`)

// escapeField keeps a field on a single physical line so that an empty line
// can only ever be a record boundary.
func escapeField(s string) string {
	return fieldEscaper.Replace(s)
}

func unescapeField(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i == len(s) {
			return "", errors.New("dangling escape")
		}
		switch s[i] {
		case '\\':
			b.WriteByte('\\')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		default:
			return "", errors.Errorf("unknown escape \\%c", s[i])
		}
	}
	return b.String(), nil
}

// encodeTurn renders one record including its trailing blank-line delimiter.
func encodeTurn(turn domain.Turn) []byte {
	var buf bytes.Buffer
	buf.WriteString(labelQuestion + escapeField(turn.Request) + "\n")
	buf.WriteString(labelAnswer + escapeField(turn.Command) + "\n")
	buf.WriteString(labelStatus + escapeField(turn.Status.String()) + "\n")
	if !turn.Timestamp.IsZero() {
		buf.WriteString(labelTime + turn.Timestamp.UTC().Format(domain.TimestampFormat) + "\n")
	}
	buf.WriteString("\n")
	return buf.Bytes()
}

// decodeTurns parses every record in r. Records that fail to parse are
// reported through skip and left out of the result.
func decodeTurns(r io.Reader, skip func(lines []string, err error)) ([]domain.Turn, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var (
		turns []domain.Turn
		block []string
	)
	flush := func() {
		if len(block) == 0 {
			return
		}
		turn, err := decodeRecord(block)
		if err != nil {
			if skip != nil {
				skip(block, err)
			}
		} else {
			turns = append(turns, turn)
		}
		block = nil
	}

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			flush()
			continue
		}
		block = append(block, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	// a record missing its trailing delimiter (e.g. a torn write) is still attempted
	flush()
	return turns, nil
}

func decodeRecord(lines []string) (domain.Turn, error) {
	var (
		turn                domain.Turn
		haveQ, haveA, haveS bool
	)
	for _, line := range lines {
		label, value, ok := splitLabel(line)
		if !ok {
			return domain.Turn{}, errors.Errorf("unlabeled line %q", line)
		}
		if label == labelTime {
			if ts, err := time.Parse(domain.TimestampFormat, value); err == nil {
				turn.Timestamp = ts
			}
			continue
		}
		text, err := unescapeField(value)
		if err != nil {
			return domain.Turn{}, errors.Wrapf(err, "field %s", strings.TrimSpace(label))
		}
		switch label {
		case labelQuestion:
			turn.Request, haveQ = text, true
		case labelAnswer:
			turn.Command, haveA = text, true
		case labelStatus:
			status, err := domain.ParseStatus(text)
			if err != nil {
				return domain.Turn{}, err
			}
			turn.Status, haveS = status, true
		}
	}
	if !haveQ || !haveA || !haveS {
		return domain.Turn{}, errors.New("incomplete record")
	}
	return turn, nil
}

func splitLabel(line string) (label, value string, ok bool) {
	for _, label := range []string{labelQuestion, labelAnswer, labelStatus, labelTime} {
		if strings.HasPrefix(line, label) {
			return label, line[len(label):], true
		}
		// a field written as empty text still has its label, minus the trailing space
		if line == strings.TrimSpace(label) {
			return label, "", true
		}
	}
	return "", "", false
}
