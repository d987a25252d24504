package flatten

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"stmtguard/internal/anonymizer/pathspec"
	dErrors "stmtguard/pkg/domain-errors"
)

type FlattenerSuite struct {
	suite.Suite
	cache     *PathMapCache
	flattener *Flattener
	logs      *bytes.Buffer
}

func TestFlattenerSuite(t *testing.T) {
	suite.Run(t, new(FlattenerSuite))
}

func (s *FlattenerSuite) SetupTest() {
	s.cache = NewPathMapCache()
	s.logs = &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(s.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var err error
	s.flattener, err = New(s.cache, WithLogger(logger))
	s.Require().NoError(err)
}

func (s *FlattenerSuite) spec(name string, paths ...string) pathspec.PathSpec {
	spec, err := pathspec.New(name, "TEST", "v1", paths)
	s.Require().NoError(err)
	return spec
}

func (s *FlattenerSuite) values(records []FlatRecord) [][]string {
	out := make([][]string, len(records))
	for i, r := range records {
		out[i] = r.Values()
	}
	return out
}

// =============================================================================
// Constructor
// =============================================================================

func (s *FlattenerSuite) TestNew() {
	s.Run("nil cache returns error", func() {
		_, err := New(nil)
		s.Error(err)
		s.Contains(err.Error(), "path map cache is required")
	})
}

// =============================================================================
// Record shape
// =============================================================================

func (s *FlattenerSuite) TestSingleArray() {
	spec := s.spec("single", "$.xns[*].date", "$.xns[*].amount")
	doc := `{"xns":[{"date":"2024-01-01","amount":100},{"date":"2024-01-02","amount":-50}]}`

	records, err := s.flattener.Flatten([]byte(doc), spec)
	s.Require().NoError(err)
	s.Equal([][]string{
		{"2024-01-01", "100"},
		{"2024-01-02", "-50"},
	}, s.values(records))
	s.Equal([]string{"$.xns[*].date", "$.xns[*].amount"}, records[0].Paths())
}

func (s *FlattenerSuite) TestNumericLiteralsKeepTheirText() {
	spec := s.spec("numbers", "$.xns[*].amount")
	doc := `{"xns":[{"amount":1500.50},{"amount":1e3},{"amount":12345678901234567890}]}`

	records, err := s.flattener.Flatten([]byte(doc), spec)
	s.Require().NoError(err)
	s.Equal([][]string{{"1500.50"}, {"1e3"}, {"12345678901234567890"}}, s.values(records))
}

func (s *FlattenerSuite) TestSiblingArraysCrossProduct() {
	spec := s.spec("cross", "$.a[*].x", "$.b[*].y")
	doc := `{"a":[{"x":1},{"x":2},{"x":3}],"b":[{"y":"p"},{"y":"q"}]}`

	records, err := s.flattener.Flatten([]byte(doc), spec)
	s.Require().NoError(err)
	s.Equal([][]string{
		{"1", "p"}, {"1", "q"},
		{"2", "p"}, {"2", "q"},
		{"3", "p"}, {"3", "q"},
	}, s.values(records))
}

func (s *FlattenerSuite) TestNestedArraysSumPerParent() {
	spec := s.spec("nested", "$.accountXns[*].xns[*].date", "$.accountXns[*].xns[*].amount")
	doc := `{"accountXns":[
		{"accountNo":"A","xns":[{"date":"d1","amount":1},{"date":"d2","amount":2}]},
		{"accountNo":"B","xns":[{"date":"d3","amount":3},{"date":"d4","amount":4},{"date":"d5","amount":5}]}
	]}`

	records, err := s.flattener.Flatten([]byte(doc), spec)
	s.Require().NoError(err)
	s.Len(records, 5)
	s.Equal([]string{"d5", "5"}, records[4].Values())
}

func (s *FlattenerSuite) TestScalarSiblingRepeatsAcrossArray() {
	spec := s.spec("scalar-sibling", "$.accountNo", "$.xns[*].amount")
	doc := `{"accountNo":"ACC1","xns":[{"amount":1},{"amount":2}]}`

	records, err := s.flattener.Flatten([]byte(doc), spec)
	s.Require().NoError(err)
	s.Equal([][]string{{"ACC1", "1"}, {"ACC1", "2"}}, s.values(records))
}

func (s *FlattenerSuite) TestPrimitiveArrayElementsAreLeaves() {
	spec := s.spec("tags", "$.id", "$.tags[*]")
	doc := `{"id":"t1","tags":["rent","upi"]}`

	records, err := s.flattener.Flatten([]byte(doc), spec)
	s.Require().NoError(err)
	s.Equal([][]string{{"t1", "rent"}, {"t1", "upi"}}, s.values(records))
}

func (s *FlattenerSuite) TestFixedIndexSelector() {
	spec := s.spec("indexed", "$.accounts[1].data.transactions[*].amount")
	doc := `{"accounts":[
		{"data":{"transactions":[{"amount":1}]}},
		{"data":{"transactions":[{"amount":7},{"amount":8}]}}
	]}`

	records, err := s.flattener.Flatten([]byte(doc), spec)
	s.Require().NoError(err)
	s.Equal([][]string{{"7"}, {"8"}}, s.values(records))
}

func (s *FlattenerSuite) TestRootArrayConcatenates() {
	spec := s.spec("root-array", "$.xns[*].amount")
	doc := `[{"xns":[{"amount":1}]},{"xns":[{"amount":2},{"amount":3}]}]`

	records, err := s.flattener.Flatten([]byte(doc), spec)
	s.Require().NoError(err)
	s.Equal([][]string{{"1"}, {"2"}, {"3"}}, s.values(records))
}

// =============================================================================
// Shape stability
// =============================================================================

func (s *FlattenerSuite) TestShapeStability() {
	spec := s.spec("stable", "$.xns[*].date", "$.xns[*].amount", "$.xns[*].chqNo")

	s.Run("missing leaves become null", func() {
		records, err := s.flattener.Flatten([]byte(`{"xns":[{"date":"d1"},{"amount":2,"chqNo":null}]}`), spec)
		s.Require().NoError(err)
		s.Equal([][]string{{"d1", NullValue, NullValue}, {NullValue, "2", NullValue}}, s.values(records))
	})

	s.Run("empty array yields one null record", func() {
		records, err := s.flattener.Flatten([]byte(`{"xns":[]}`), spec)
		s.Require().NoError(err)
		s.Require().Len(records, 1)
		s.True(records[0].IsNull())
		s.Equal(3, records[0].Len())
	})

	s.Run("missing array yields one null record", func() {
		records, err := s.flattener.Flatten([]byte(`{"other":1}`), spec)
		s.Require().NoError(err)
		s.Require().Len(records, 1)
		s.True(records[0].IsNull())
	})

	s.Run("structural mismatch is logged and nulled", func() {
		s.logs.Reset()
		records, err := s.flattener.Flatten([]byte(`{"xns":[{"date":{"d":1},"amount":"x"}]}`), spec)
		s.Require().NoError(err)
		s.Equal([][]string{{NullValue, "x", NullValue}}, s.values(records))
		s.Contains(s.logs.String(), "expected scalar, found object")
	})

	s.Run("array marker on a non-array is nulled", func() {
		s.logs.Reset()
		records, err := s.flattener.Flatten([]byte(`{"xns":{"date":"d1"}}`), spec)
		s.Require().NoError(err)
		s.Len(records, 1)
		s.True(records[0].IsNull())
		s.Contains(s.logs.String(), "expected array, found object")
	})

	s.Run("every record has the spec arity", func() {
		docs := []string{
			`{"xns":[{"date":"a","amount":1,"chqNo":"c"}]}`,
			`{"xns":[{},{},{}]}`,
			`{"xns":"scalar"}`,
			`[]`,
		}
		for _, doc := range docs {
			records, err := s.flattener.Flatten([]byte(doc), spec)
			s.Require().NoError(err, doc)
			for _, r := range records {
				s.Equal(spec.Len(), r.Len(), doc)
			}
		}
	})
}

// =============================================================================
// Input edge cases
// =============================================================================

func (s *FlattenerSuite) TestEmptyAndInvalidInput() {
	spec := s.spec("edge", "$.a")

	s.Run("blank input yields no records", func() {
		for _, raw := range []string{"", "   \n", "null"} {
			records, err := s.flattener.Flatten([]byte(raw), spec)
			s.NoError(err)
			s.Empty(records)
		}
	})

	s.Run("invalid json is invalid input", func() {
		_, err := s.flattener.Flatten([]byte(`{"a":`), spec)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		_, err = s.flattener.Flatten([]byte(`{"a":1} {"a":2}`), spec)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unbound template is rejected", func() {
		tmpl := pathspec.MustNew("tmpl", "T", "v1", []string{"$.accounts[%d].x"})
		_, err := s.flattener.Flatten([]byte(`{}`), tmpl)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("record bound is enforced before materializing", func() {
		small, err := New(s.cache, WithMaxRecords(3))
		s.Require().NoError(err)
		cross := s.spec("bounded", "$.a[*]", "$.b[*]")
		_, err = small.Flatten([]byte(`{"a":[1,2],"b":[1,2]}`), cross)
		s.ErrorIs(err, ErrTooManyRecords)
	})
}

func (s *FlattenerSuite) TestFlattenLinesUsesSeparator() {
	spec, err := pathspec.New("lines", "T", "v1", []string{"$.xns[*].date", "$.xns[*].amount"}, pathspec.WithSeparator(';'))
	s.Require().NoError(err)

	lines, err := s.flattener.FlattenLines([]byte(`{"xns":[{"date":"d","amount":1}]}`), spec)
	s.Require().NoError(err)
	s.Equal([]string{"d;1"}, lines)
}

func (s *FlattenerSuite) TestDeterministic() {
	spec := s.spec("det", "$.a[*].x", "$.a[*].y[*]")
	doc := []byte(`{"a":[{"x":1,"y":[1,2]},{"x":2,"y":[3]}]}`)

	first, err := s.flattener.Flatten(doc, spec)
	s.Require().NoError(err)
	for i := 0; i < 5; i++ {
		again, err := s.flattener.Flatten(doc, spec)
		s.Require().NoError(err)
		s.Equal(s.values(first), s.values(again))
	}
}

// =============================================================================
// Cache
// =============================================================================

func (s *FlattenerSuite) TestCacheInsertIfAbsent() {
	first := s.spec("shared", "$.a")
	second := s.spec("shared", "$.b")

	pm1, err := s.cache.Get(first)
	s.Require().NoError(err)
	pm2, err := s.cache.Get(second)
	s.Require().NoError(err)

	s.Same(pm1, pm2, "first map stored under a name wins")
	s.Equal(1, s.cache.Len())
}

func (s *FlattenerSuite) TestConcurrentFlattenSharesCache() {
	const workers = 32
	doc := []byte(`{"xns":[{"date":"d1","amount":1},{"date":"d2","amount":2}]}`)

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			spec, err := pathspec.New(fmt.Sprintf("concurrent-%d", i%4), "T", "v1", []string{"$.xns[*].date", "$.xns[*].amount"})
			if err != nil {
				errs <- err
				return
			}
			records, err := s.flattener.Flatten(doc, spec)
			if err != nil {
				errs <- err
				return
			}
			if len(records) != 2 {
				errs <- fmt.Errorf("expected 2 records, got %d", len(records))
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}
	s.Equal(4, s.cache.Len())
}

func TestDecodeKeepsNumbers(t *testing.T) {
	doc, err := Decode([]byte(`{"n":10.00}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	n, ok := doc.(map[string]any)["n"].(json.Number)
	if !ok || n.String() != "10.00" {
		t.Fatalf("expected json.Number 10.00, got %#v", doc)
	}
}

func TestRecordMergeDoesNotAlias(t *testing.T) {
	base := NewRecord(Cell{Path: "$.a", Value: "1"})
	left := base.Merge(NewRecord(Cell{Path: "$.b", Value: "x"}))
	right := base.Merge(NewRecord(Cell{Path: "$.b", Value: "y"}))

	if left.Line('|') != "1|x" || right.Line('|') != "1|y" {
		t.Fatalf("unexpected merge result %q %q", left.Line('|'), right.Line('|'))
	}
	if v, ok := right.Get("$.b"); !ok || v != "y" {
		t.Fatalf("expected $.b=y, got %q", v)
	}
	if strings.Join(left.Paths(), ",") != "$.a,$.b" {
		t.Fatalf("unexpected paths %v", left.Paths())
	}
}
