package job

import (
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	rec := New("clip_a1b2c3d4.mp4", "clip.mp4", "/data/uploads/clip_a1b2c3d4.mp4", 2048)

	if rec.ID != "clip_a1b2c3d4.mp4" {
		t.Errorf("unexpected ID %q", rec.ID)
	}
	if rec.Status != StatusProcessing {
		t.Errorf("expected status %s, got %s", StatusProcessing, rec.Status)
	}
	if rec.CompletedAt != nil {
		t.Error("CompletedAt should be nil until terminal")
	}
	if rec.FileSize != 2048 {
		t.Errorf("expected file size 2048, got %d", rec.FileSize)
	}
	if len(rec.Stages) != 0 {
		t.Errorf("expected empty stage map, got %d entries", len(rec.Stages))
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	if StatusProcessing.IsTerminal() {
		t.Error("processing must not be terminal")
	}
	if !StatusCompleted.IsTerminal() {
		t.Error("completed must be terminal")
	}
	if !StatusFailed.IsTerminal() {
		t.Error("failed must be terminal")
	}
}

func TestPatch_Apply_MergesOnlySetFields(t *testing.T) {
	rec := New("a.mp4", "a.mp4", "/data/a.mp4", 10)
	rec.Language = "French"

	lang := "English"
	patch := Patch{Language: &lang}
	patch.apply(rec)

	if rec.Language != "English" {
		t.Errorf("expected language updated, got %q", rec.Language)
	}
	if rec.Status != StatusProcessing {
		t.Error("unset fields must not change")
	}
	if rec.SourcePath != "/data/a.mp4" {
		t.Error("unset fields must not change")
	}
}

func TestPatch_Apply_StageMergePreservesOtherStages(t *testing.T) {
	rec := New("a.mp4", "a.mp4", "/data/a.mp4", 10)

	out1 := Success("/data/work/downscaled.mp4")
	Patch{Stage: StageDownscale, Outcome: &out1}.apply(rec)

	out2 := Degraded("unidentified", "no detections")
	Patch{Stage: StageAnimalDetect, Outcome: &out2}.apply(rec)

	if len(rec.Stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(rec.Stages))
	}
	if rec.Stages[StageDownscale].Kind != OutcomeSuccess {
		t.Error("downscale outcome must survive later stage writes")
	}

	// Overwriting the same stage replaces it without touching the other.
	out3 := Failed("ffmpeg exit 1")
	Patch{Stage: StageDownscale, Outcome: &out3}.apply(rec)
	if rec.Stages[StageDownscale].Kind != OutcomeFailed {
		t.Error("stage overwrite must take effect")
	}
	if rec.Stages[StageAnimalDetect].Payload != "unidentified" {
		t.Error("unrelated stage must be untouched")
	}
}

func TestPatch_Apply_AppendsWarnings(t *testing.T) {
	rec := New("a.mp4", "a.mp4", "/data/a.mp4", 10)

	w1 := "mux failed: missing stream"
	Patch{Warning: &w1}.apply(rec)
	w2 := "second warning"
	Patch{Warning: &w2}.apply(rec)

	if len(rec.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(rec.Warnings))
	}
	if rec.Warnings[0] != w1 || rec.Warnings[1] != w2 {
		t.Error("warnings must append in order")
	}
}

func TestRecord_Clone_IsDeep(t *testing.T) {
	rec := New("a.mp4", "a.mp4", "/data/a.mp4", 10)
	rec.Animals = []string{"zebra"}
	rec.Stages[StageDownscale] = Success("/tmp/x")
	now := time.Now().UTC()
	rec.CompletedAt = &now

	clone := rec.Clone()
	clone.Animals[0] = "lion"
	clone.Stages[StageDownscale] = Failed("boom")
	*clone.CompletedAt = now.Add(time.Hour)

	if rec.Animals[0] != "zebra" {
		t.Error("clone must not share the animals slice")
	}
	if rec.Stages[StageDownscale].Kind != OutcomeSuccess {
		t.Error("clone must not share the stage map")
	}
	if !rec.CompletedAt.Equal(now) {
		t.Error("clone must not share the CompletedAt pointer")
	}
}

func TestRecord_ArtifactPaths(t *testing.T) {
	rec := New("a.mp4", "a.mp4", "/data/a.mp4", 10)
	rec.SubtitlePath = "/data/work/a.vtt"

	paths := rec.ArtifactPaths()
	if len(paths) != 2 {
		t.Fatalf("expected 2 paths, got %v", paths)
	}
}
