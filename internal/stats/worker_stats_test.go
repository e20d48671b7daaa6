package stats

import (
	"sync"
	"testing"
	"time"
)

func TestNewWorkerStats(t *testing.T) {
	stats := NewWorkerStats(42)

	if stats.WorkerID != 42 {
		t.Errorf("WorkerID = %d, want 42", stats.WorkerID)
	}
	if stats.StartTime.IsZero() {
		t.Error("StartTime should not be zero")
	}
	if stats.runtimeDigest == nil {
		t.Error("runtimeDigest should be initialized")
	}
}

func TestFailureKind_String(t *testing.T) {
	tests := []struct {
		kind FailureKind
		want string
	}{
		{FailureNone, "none"},
		{FailureConfiguration, "configuration"},
		{FailureTimeout, "timeout"},
		{FailureProcess, "process"},
		{FailureParse, "parse"},
		{FailureKind(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("FailureKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestWorkerStats_RecordSuccess(t *testing.T) {
	stats := NewWorkerStats(0)

	stats.RecordSuccess(100*time.Millisecond, 1, 1875)
	stats.RecordSuccess(200*time.Millisecond, 1, 1875)
	stats.RecordSuccess(300*time.Millisecond, 3, 1875)

	if got := stats.JobsCompleted.Load(); got != 3 {
		t.Errorf("JobsCompleted = %d, want 3", got)
	}
	if got := stats.JobsFailed.Load(); got != 0 {
		t.Errorf("JobsFailed = %d, want 0", got)
	}
	if got := stats.RowsProduced.Load(); got != 5 {
		t.Errorf("RowsProduced = %d, want 5", got)
	}
	if got := stats.DescriptorColumns.Load(); got != 1875 {
		t.Errorf("DescriptorColumns = %d, want 1875", got)
	}
}

func TestWorkerStats_RecordFailure(t *testing.T) {
	stats := NewWorkerStats(0)

	stats.RecordFailure(50*time.Millisecond, FailureTimeout)
	stats.RecordFailure(50*time.Millisecond, FailureTimeout)
	stats.RecordFailure(10*time.Millisecond, FailureProcess)
	stats.RecordFailure(5*time.Millisecond, FailureParse)
	stats.RecordFailure(time.Millisecond, FailureConfiguration)

	if got := stats.JobsFailed.Load(); got != 5 {
		t.Errorf("JobsFailed = %d, want 5", got)
	}
	if got := stats.TimeoutFailures.Load(); got != 2 {
		t.Errorf("TimeoutFailures = %d, want 2", got)
	}
	if got := stats.ProcessFailures.Load(); got != 1 {
		t.Errorf("ProcessFailures = %d, want 1", got)
	}
	if got := stats.ParseFailures.Load(); got != 1 {
		t.Errorf("ParseFailures = %d, want 1", got)
	}
	if got := stats.ConfigFailures.Load(); got != 1 {
		t.Errorf("ConfigFailures = %d, want 1", got)
	}
}

func TestWorkerStats_CurrentJob(t *testing.T) {
	stats := NewWorkerStats(0)

	// Idle initially
	if _, _, active := stats.CurrentJob(); active {
		t.Error("should be idle before OnJobStart")
	}

	stats.OnJobStart("CCO")
	time.Sleep(10 * time.Millisecond)

	subject, runtime, active := stats.CurrentJob()
	if !active {
		t.Fatal("should be active after OnJobStart")
	}
	if subject != "CCO" {
		t.Errorf("subject = %q, want CCO", subject)
	}
	if runtime < 10*time.Millisecond {
		t.Errorf("runtime = %v, want >= 10ms", runtime)
	}

	// Success clears the current job
	stats.RecordSuccess(runtime, 1, 100)
	if _, _, active := stats.CurrentJob(); active {
		t.Error("should be idle after RecordSuccess")
	}

	// Failure clears it too
	stats.OnJobStart("c1ccccc1")
	stats.RecordFailure(time.Millisecond, FailureProcess)
	if _, _, active := stats.CurrentJob(); active {
		t.Error("should be idle after RecordFailure")
	}
}

func TestWorkerStats_IsSlow(t *testing.T) {
	stats := NewWorkerStats(0)

	if stats.IsSlow() {
		t.Error("idle worker should not be slow")
	}

	stats.OnJobStart("CCO")
	if stats.IsSlow() {
		t.Error("fresh job should not be slow")
	}

	// Backdate the job start past the threshold
	stats.currentJobStart.Store(time.Now().Add(-SlowJobThreshold - time.Second).UnixNano())
	if !stats.IsSlow() {
		t.Error("job running past SlowJobThreshold should be slow")
	}
}

func TestWorkerStats_ExitCodes(t *testing.T) {
	stats := NewWorkerStats(0)

	stats.RecordExit(0)
	stats.RecordExit(0)
	stats.RecordExit(1)
	stats.RecordExit(137)
	stats.RecordExit(143)

	codes := stats.GetExitCodes()
	if codes[0] != 2 {
		t.Errorf("ExitCodes[0] = %d, want 2", codes[0])
	}
	if codes[1] != 1 {
		t.Errorf("ExitCodes[1] = %d, want 1", codes[1])
	}
	if codes[137] != 1 {
		t.Errorf("ExitCodes[137] = %d, want 1", codes[137])
	}
	if codes[143] != 1 {
		t.Errorf("ExitCodes[143] = %d, want 1", codes[143])
	}
	if len(codes) != 4 {
		t.Errorf("len(ExitCodes) = %d, want 4", len(codes))
	}
}

func TestWorkerStats_ExitCodeOutOfRange(t *testing.T) {
	stats := NewWorkerStats(0)

	// Out-of-range codes land in the overflow bucket
	stats.RecordExit(-1)
	stats.RecordExit(300)

	codes := stats.GetExitCodes()
	if codes[255] != 2 {
		t.Errorf("ExitCodes[255] = %d, want 2 (overflow bucket)", codes[255])
	}
}

func TestWorkerStats_RuntimeTracking(t *testing.T) {
	stats := NewWorkerStats(0)

	// No jobs yet
	if got := stats.RuntimePercentile(0.50); got != 0 {
		t.Errorf("P50 with no jobs = %v, want 0", got)
	}
	if got := stats.MeanRuntime(); got != 0 {
		t.Errorf("MeanRuntime with no jobs = %v, want 0", got)
	}

	stats.RecordSuccess(100*time.Millisecond, 1, 10)
	stats.RecordSuccess(200*time.Millisecond, 1, 10)
	stats.RecordSuccess(300*time.Millisecond, 1, 10)

	if got := stats.MinRuntime(); got != 100*time.Millisecond {
		t.Errorf("MinRuntime = %v, want 100ms", got)
	}
	if got := stats.MaxRuntime(); got != 300*time.Millisecond {
		t.Errorf("MaxRuntime = %v, want 300ms", got)
	}
	if got := stats.LastRuntime(); got != 300*time.Millisecond {
		t.Errorf("LastRuntime = %v, want 300ms", got)
	}
	if got := stats.MeanRuntime(); got != 200*time.Millisecond {
		t.Errorf("MeanRuntime = %v, want 200ms", got)
	}
}

func TestWorkerStats_RuntimePercentiles(t *testing.T) {
	stats := NewWorkerStats(0)

	// 100 samples: 1ms, 2ms, ..., 100ms
	for i := 1; i <= 100; i++ {
		stats.recordRuntime(time.Duration(i) * time.Millisecond)
	}

	p50 := stats.RuntimePercentile(0.50)
	if p50 < 45*time.Millisecond || p50 > 55*time.Millisecond {
		t.Errorf("P50 = %v, expected ~50ms", p50)
	}

	p95 := stats.RuntimePercentile(0.95)
	if p95 < 90*time.Millisecond || p95 > 100*time.Millisecond {
		t.Errorf("P95 = %v, expected ~95ms", p95)
	}

	if got := stats.MaxRuntime(); got != 100*time.Millisecond {
		t.Errorf("MaxRuntime = %v, want 100ms", got)
	}
}

func TestWorkerStats_ZeroRuntimeIgnored(t *testing.T) {
	stats := NewWorkerStats(0)

	stats.recordRuntime(0)
	stats.recordRuntime(-time.Second)

	if got := stats.runtimeCount.Load(); got != 0 {
		t.Errorf("runtimeCount = %d, want 0 (non-positive runtimes ignored)", got)
	}
}

func TestWorkerStats_StderrEvents(t *testing.T) {
	stats := NewWorkerStats(0)

	stats.RecordStderrEvent(false)
	stats.RecordStderrEvent(false)
	stats.RecordStderrEvent(true)

	if got := stats.ExceptionsSeen.Load(); got != 3 {
		t.Errorf("ExceptionsSeen = %d, want 3", got)
	}
	if got := stats.FatalsSeen.Load(); got != 1 {
		t.Errorf("FatalsSeen = %d, want 1", got)
	}
}

func TestWorkerStats_PipelineHealth(t *testing.T) {
	stats := NewWorkerStats(0)

	// No drops initially
	if stats.CurrentDropRate() != 0 {
		t.Errorf("CurrentDropRate = %v, want 0", stats.CurrentDropRate())
	}

	// 300 read, 15 dropped across both streams = 5% drop rate
	stats.RecordPipelineStats(100, 5, 200, 10)

	expectedRate := 15.0 / 300.0
	if stats.CurrentDropRate() != expectedRate {
		t.Errorf("CurrentDropRate = %v, want %v", stats.CurrentDropRate(), expectedRate)
	}
	if got := stats.StdoutLinesRead.Load(); got != 100 {
		t.Errorf("StdoutLinesRead = %d, want 100", got)
	}
	if got := stats.StderrLinesDropped.Load(); got != 10 {
		t.Errorf("StderrLinesDropped = %d, want 10", got)
	}

	// Should be degraded at 1% threshold
	if !stats.MetricsDegraded(0.01) {
		t.Error("should be degraded at 1% threshold")
	}

	// Should not be degraded at 10% threshold
	if stats.MetricsDegraded(0.10) {
		t.Error("should not be degraded at 10% threshold")
	}

	// Peak drop rate should be recorded
	if stats.GetPeakDropRate() != expectedRate {
		t.Errorf("PeakDropRate = %v, want %v", stats.GetPeakDropRate(), expectedRate)
	}

	// Peak survives a later quiet job
	stats.RecordPipelineStats(5000, 5, 5000, 10)
	if stats.GetPeakDropRate() != expectedRate {
		t.Errorf("PeakDropRate after quiet job = %v, want %v", stats.GetPeakDropRate(), expectedRate)
	}
	if stats.MetricsDegraded(0.01) {
		t.Error("lifetime rate should have recovered below 1%")
	}
}

func TestWorkerStats_Uptime(t *testing.T) {
	stats := NewWorkerStats(0)

	time.Sleep(50 * time.Millisecond)

	uptime := stats.Uptime()
	if uptime < 50*time.Millisecond {
		t.Errorf("Uptime = %v, want >= 50ms", uptime)
	}
}

func TestWorkerStats_GetSummary(t *testing.T) {
	stats := NewWorkerStats(42)

	stats.RecordJVMStart()
	stats.RecordSuccess(100*time.Millisecond, 2, 1444)
	stats.RecordJVMStart()
	stats.RecordFailure(50*time.Millisecond, FailureTimeout)
	stats.RecordExit(0)
	stats.RecordExit(143)
	stats.RecordStderrEvent(true)
	stats.OnJobStart("CC(=O)Oc1ccccc1C(=O)O")

	summary := stats.GetSummary()

	if summary.WorkerID != 42 {
		t.Errorf("Summary.WorkerID = %d, want 42", summary.WorkerID)
	}
	if summary.JobsCompleted != 1 {
		t.Errorf("Summary.JobsCompleted = %d, want 1", summary.JobsCompleted)
	}
	if summary.JobsFailed != 1 {
		t.Errorf("Summary.JobsFailed = %d, want 1", summary.JobsFailed)
	}
	if summary.TimeoutFailures != 1 {
		t.Errorf("Summary.TimeoutFailures = %d, want 1", summary.TimeoutFailures)
	}
	if summary.RowsProduced != 2 {
		t.Errorf("Summary.RowsProduced = %d, want 2", summary.RowsProduced)
	}
	if summary.JVMStarts != 2 {
		t.Errorf("Summary.JVMStarts = %d, want 2", summary.JVMStarts)
	}
	if summary.ExitCodes[143] != 1 {
		t.Errorf("Summary.ExitCodes[143] = %d, want 1", summary.ExitCodes[143])
	}
	if summary.MinRuntime != 50*time.Millisecond {
		t.Errorf("Summary.MinRuntime = %v, want 50ms", summary.MinRuntime)
	}
	if summary.MaxRuntime != 100*time.Millisecond {
		t.Errorf("Summary.MaxRuntime = %v, want 100ms", summary.MaxRuntime)
	}
	if summary.ExceptionsSeen != 1 {
		t.Errorf("Summary.ExceptionsSeen = %d, want 1", summary.ExceptionsSeen)
	}
	if !summary.Active {
		t.Error("Summary.Active should be true with a job in flight")
	}
	if summary.CurrentSubject != "CC(=O)Oc1ccccc1C(=O)O" {
		t.Errorf("Summary.CurrentSubject = %q", summary.CurrentSubject)
	}
}

func TestWorkerStats_ThreadSafety(t *testing.T) {
	stats := NewWorkerStats(0)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				stats.OnJobStart("CCO")
				stats.RecordJVMStart()
				stats.RecordSuccess(time.Duration(j+1)*time.Millisecond, 1, 100)
				stats.RecordExit(0)
				stats.RecordStderrEvent(false)
				stats.RecordPipelineStats(int64(j+1), 0, int64(j+1), 0)
				_ = stats.GetSummary()
			}
		}(i)
	}

	wg.Wait()

	// Just verify no panics and counts are reasonable
	if got := stats.JobsCompleted.Load(); got != 1000 {
		t.Errorf("JobsCompleted = %d, want 1000", got)
	}
	if got := stats.JVMStarts.Load(); got != 1000 {
		t.Errorf("JVMStarts = %d, want 1000", got)
	}
	if got := stats.runtimeCount.Load(); got != 1000 {
		t.Errorf("runtimeCount = %d, want 1000", got)
	}
}

func BenchmarkWorkerStats_RecordSuccess(b *testing.B) {
	stats := NewWorkerStats(0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		stats.RecordSuccess(time.Duration(i)*time.Microsecond, 1, 100)
	}
}

func BenchmarkWorkerStats_GetSummary(b *testing.B) {
	stats := NewWorkerStats(0)

	// Populate with some data
	for i := 0; i < 100; i++ {
		stats.RecordSuccess(time.Duration(i+1)*time.Millisecond, 1, 100)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = stats.GetSummary()
	}
}
