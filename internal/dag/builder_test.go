package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alecgunny/pyomicron/internal/model"
)

func testJob(start, end int64) model.JobSpec {
	return model.JobSpec{
		ID:    model.JobID(start, end),
		Start: start,
		End:   end,
		Outputs: map[string]string{
			"root": model.JobID(start, end) + ".root",
		},
	}
}

func testBuilder() *Builder {
	return &Builder{
		Executable:      "/usr/bin/omicron.exe",
		MergeExecutable: "/usr/bin/omicron-merge",
		ParameterFile:   "params.txt",
		CacheFile:       "frames.lcf",
		Retry:           1,
		RequestMemoryMB: 1000,
		RequestDiskMB:   500,
	}
}

func TestBuildAnalysisNodes(t *testing.T) {
	jobs := []model.JobSpec{testJob(0, 100), testJob(100, 200)}
	jobs[0].PadEnd = 8
	jobs[1].PadStart = 8

	d, err := testBuilder().Build(jobs, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())

	n := d.Node("analysis-0-100")
	require.NotNil(t, n)
	assert.Equal(t, KindAnalysis, n.Kind)
	assert.Equal(t, "/usr/bin/omicron.exe", n.Command)
	// args carry the padded data span
	assert.Equal(t, []string{"0", "108", "frames.lcf", "params.txt"}, n.Args)
	assert.Equal(t, 1, n.Retry)
	assert.Empty(t, n.Parents)
	require.NotNil(t, n.Job)
	assert.Equal(t, "0-100", n.Job.ID)
}

func TestBuildMergeNodes(t *testing.T) {
	jobs := []model.JobSpec{testJob(0, 100), testJob(100, 200)}
	groups := []model.MergeGroup{{
		OutputKind:       "root",
		Bucket:           0,
		Members:          jobs,
		ConsolidatedPath: "merged.root",
	}}

	d, err := testBuilder().Build(jobs, groups)
	require.NoError(t, err)

	m := d.Node("merge-root-0")
	require.NotNil(t, m)
	assert.Equal(t, KindMerge, m.Kind)
	assert.Equal(t, "/usr/bin/omicron-merge", m.Command)
	assert.Equal(t, []string{"--output", "merged.root", "0-100.root", "100-200.root"}, m.Args)

	require.Len(t, m.Parents, 2)
	assert.Equal(t, "analysis-0-100", m.Parents[0].Name)
	assert.Equal(t, "analysis-100-200", m.Parents[1].Name)
}

func TestBuildRejectsUnknownMember(t *testing.T) {
	groups := []model.MergeGroup{{
		OutputKind: "root",
		Members:    []model.JobSpec{testJob(0, 100)},
	}}

	_, err := testBuilder().Build(nil, groups)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Error(), "unknown job")
}

func TestBuildRejectsDuplicateJobs(t *testing.T) {
	jobs := []model.JobSpec{testJob(0, 100), testJob(0, 100)}

	_, err := testBuilder().Build(jobs, nil)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Error(), "duplicate")
}

func TestBuildRejectsDuplicateGroups(t *testing.T) {
	jobs := []model.JobSpec{testJob(0, 100)}
	group := model.MergeGroup{OutputKind: "root", Bucket: 0, Members: jobs}

	_, err := testBuilder().Build(jobs, []model.MergeGroup{group, group})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Error(), "duplicate")
}

func TestBuildEdgesEndAtAnalysisNodes(t *testing.T) {
	// merge edges always terminate at analysis nodes, so no job set,
	// however crafted, can build a cycle through a merge group
	jobs := []model.JobSpec{testJob(0, 100), testJob(100, 200)}
	groups := []model.MergeGroup{
		{OutputKind: "root", Bucket: 0, Members: jobs},
		{OutputKind: "root", Bucket: 100, Members: []model.JobSpec{jobs[1]}},
	}

	d, err := testBuilder().Build(jobs, groups)
	require.NoError(t, err)
	require.NoError(t, d.Validate())

	for _, name := range d.Names() {
		for _, p := range d.Node(name).Parents {
			assert.Equal(t, KindAnalysis, p.Kind, name)
		}
	}
}

func TestBuildThrottleWaves(t *testing.T) {
	var jobs []model.JobSpec
	for i := int64(0); i < 5; i++ {
		jobs = append(jobs, testJob(i*100, (i+1)*100))
	}

	b := testBuilder()
	b.MaxConcurrent = 2
	d, err := b.Build(jobs, nil)
	require.NoError(t, err)

	// lexical order: 0-100, 100-200, 200-300, 300-400, 400-500
	assert.Empty(t, d.Node("analysis-0-100").Parents)
	assert.Empty(t, d.Node("analysis-100-200").Parents)
	assert.Len(t, d.Node("analysis-200-300").Parents, 2)
	assert.Len(t, d.Node("analysis-300-400").Parents, 2)
	assert.Len(t, d.Node("analysis-400-500").Parents, 2)

	third := d.Node("analysis-200-300")
	assert.Equal(t, "analysis-0-100", third.Parents[0].Name)
	assert.Equal(t, "analysis-100-200", third.Parents[1].Name)

	fifth := d.Node("analysis-400-500")
	assert.Equal(t, "analysis-200-300", fifth.Parents[0].Name)
	assert.Equal(t, "analysis-300-400", fifth.Parents[1].Name)
}

func TestBuildDeterministic(t *testing.T) {
	jobs := []model.JobSpec{testJob(0, 100), testJob(100, 200)}
	groups := []model.MergeGroup{{
		OutputKind: "root",
		Members:    jobs,
	}}

	first, err := testBuilder().Build(jobs, groups)
	require.NoError(t, err)
	again, err := testBuilder().Build(jobs, groups)
	require.NoError(t, err)
	assert.Equal(t, first.Names(), again.Names())
}
