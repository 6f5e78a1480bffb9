package batch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"degreeaudit/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestParseJobs(t *testing.T) {
	input := strings.NewReader(`
123456 2019-20 130
111111 2018-19 395
123456 2019-20 130
`)
	jobs, err := ParseJobs(input)
	require.NoError(t, err)

	assert.Equal(t, []Job{
		{Stnum: "111111", Catalog: "2018-19", AreaCode: "395"},
		{Stnum: "123456", Catalog: "2019-20", AreaCode: "130"},
	}, jobs, "duplicates removed, sorted order")
}

func TestParseJobsRejectsMalformedLines(t *testing.T) {
	_, err := ParseJobs(strings.NewReader("123456 2019-20"))
	assert.Error(t, err)
}

const batchArea = `
name: Biology
code: "130"
catalog: 2019-20
type: major
result:
  all:
    - course: BIO 101
`

const batchStudent = `{
	"stnum": "123456",
	"name": "Ada Example",
	"courses": [
		{
			"clbid": "c1",
			"crsid": "crs-bio-101",
			"course": "BIO 101",
			"subject": ["BIO"],
			"credits": "1.00",
			"grade_code": "A",
			"grade_points": "4.00",
			"grade_option": "grade",
			"year": 2018,
			"term": 1,
			"is_in_gpa": true
		}
	]
}`

func batchFixture(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()

	areasDir := filepath.Join(root, "areas", "2019-20")
	require.NoError(t, os.MkdirAll(areasDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(areasDir, "130.yaml"), []byte(batchArea), 0644))

	studentDir := filepath.Join(root, "students")
	require.NoError(t, os.MkdirAll(studentDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(studentDir, "123456.json"), []byte(batchStudent), 0644))

	cfg := config.DefaultConfig()
	cfg.AreasDir = filepath.Join(root, "areas")
	cfg.StudentDir = studentDir
	cfg.Workers = 2
	cfg.Audit.TimeoutSeconds = 10
	return cfg
}

func TestRunnerRunsAudits(t *testing.T) {
	cfg := batchFixture(t)
	runner := NewRunner(cfg, zap.NewNop(), nil)
	require.NotEmpty(t, runner.RunID)

	jobs := []Job{{Stnum: "123456", Catalog: "2019-20", AreaCode: "130"}}

	var mu sync.Mutex
	var outcomes []Outcome
	err := runner.Run(context.Background(), jobs, func(o Outcome) {
		mu.Lock()
		outcomes = append(outcomes, o)
		mu.Unlock()
	})
	require.NoError(t, err)

	require.Len(t, outcomes, 1)
	o := outcomes[0]
	require.NoError(t, o.Err)
	require.NotNil(t, o.Result)
	assert.True(t, o.Result.OK())
	assert.Equal(t, "4.00", o.Result.GPA.StringFixed(2))
}

func TestRunnerReportsMissingStudent(t *testing.T) {
	cfg := batchFixture(t)
	runner := NewRunner(cfg, zap.NewNop(), nil)

	jobs := []Job{{Stnum: "999999", Catalog: "2019-20", AreaCode: "130"}}

	var outcomes []Outcome
	var mu sync.Mutex
	err := runner.Run(context.Background(), jobs, func(o Outcome) {
		mu.Lock()
		outcomes = append(outcomes, o)
		mu.Unlock()
	})
	require.NoError(t, err)

	require.Len(t, outcomes, 1)
	assert.Error(t, outcomes[0].Err)
}
