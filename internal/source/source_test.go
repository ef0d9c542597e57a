package source_test

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"

	"discstack/internal/dropout"
	"discstack/internal/faults"
	"discstack/internal/source"
	"discstack/internal/testsupport"
	"discstack/internal/vbi"
)

func openOne(t *testing.T, fs afero.Fs, path string) *source.Source {
	t.Helper()
	src, err := source.Open(context.Background(), 0, path, source.Options{Fs: fs})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = src.Close() })
	return src
}

func TestOpenClassifiesCAV(t *testing.T) {
	fs := afero.NewMemMapFs()
	testsupport.WriteCapture(t, fs, "/cap/a.tbc", testsupport.WithFrames(10, 5))

	src := openOne(t, fs, "/cap/a.tbc")
	if !src.IsCAV() {
		t.Fatal("expected CAV classification")
	}
	if src.StartVbiFrame() != 10 || src.EndVbiFrame() != 14 {
		t.Fatalf("unexpected range %d..%d", src.StartVbiFrame(), src.EndVbiFrame())
	}
	if src.NumberOfFrames() != 5 {
		t.Fatalf("expected 5 frames, got %d", src.NumberOfFrames())
	}
	if src.Standard() != "NTSC" {
		t.Fatalf("unexpected standard %q", src.Standard())
	}
	if got := src.SequentialFrame(12); got != 3 {
		t.Fatalf("SequentialFrame(12) = %d, want 3", got)
	}
}

func TestOpenClassifiesCLVAndConvertsTimecodes(t *testing.T) {
	fs := afero.NewMemMapFs()
	testsupport.WriteCapture(t, fs, "/cap/clv.tbc", testsupport.WithCLV(), testsupport.WithPAL(), testsupport.WithFrames(90123, 3))

	src := openOne(t, fs, "/cap/clv.tbc")
	if src.IsCAV() {
		t.Fatal("expected CLV classification")
	}
	if src.StartVbiFrame() != 90123 || src.EndVbiFrame() != 90125 {
		t.Fatalf("unexpected range %d..%d", src.StartVbiFrame(), src.EndVbiFrame())
	}
	if !src.IsPAL() {
		t.Fatal("expected PAL source")
	}
}

func TestOpenTieResolvesToCLV(t *testing.T) {
	fs := afero.NewMemMapFs()
	both := func(frame int) (first, second [3]int) {
		clvFirst, _ := vbi.EncodeAddress(frame, false, false)
		first = [3]int{clvFirst[0], clvFirst[1], vbi.EncodePictureNumber(frame)}
		return first, [3]int{}
	}
	testsupport.WriteCapture(t, fs, "/cap/tie.tbc", testsupport.WithFrames(40, 4), testsupport.WithVBI(both))

	src := openOne(t, fs, "/cap/tie.tbc")
	cav, clv := src.Classification()
	if cav != 4 || clv != 4 {
		t.Fatalf("expected 4/4 classification counts, got %d/%d", cav, clv)
	}
	if src.IsCAV() {
		t.Fatal("expected tie to resolve to CLV")
	}
	if src.StartVbiFrame() != 40 {
		t.Fatalf("expected CLV-derived start 40, got %d", src.StartVbiFrame())
	}
}

func TestOpenMajorityCAVWins(t *testing.T) {
	fs := afero.NewMemMapFs()
	mixed := func(frame int) (first, second [3]int) {
		code := vbi.EncodePictureNumber(frame)
		if frame == 1 {
			clvFirst, _ := vbi.EncodeAddress(frame, false, false)
			return [3]int{clvFirst[0], clvFirst[1], code}, [3]int{}
		}
		return [3]int{0, code, code}, [3]int{}
	}
	testsupport.WriteCapture(t, fs, "/cap/mixed.tbc", testsupport.WithVBI(mixed))

	src := openOne(t, fs, "/cap/mixed.tbc")
	if !src.IsCAV() {
		t.Fatal("expected CAV when picture numbers outnumber timecodes")
	}
}

func TestOpenUsesInjectedDecoder(t *testing.T) {
	fs := afero.NewMemMapFs()
	testsupport.WriteCapture(t, fs, "/cap/a.tbc", testsupport.WithVBI(func(frame int) (first, second [3]int) {
		return [3]int{frame, 0, 0}, [3]int{}
	}))
	decode := func(first, _ [3]int) vbi.Frame {
		return vbi.Frame{PicNo: first[0] + 1000, ClvHr: vbi.Unset, ClvMin: vbi.Unset, ClvSec: vbi.Unset, ClvPicNo: vbi.Unset, Chapter: vbi.Unset}
	}
	src, err := source.Open(context.Background(), 0, "/cap/a.tbc", source.Options{Fs: fs, Decode: decode})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer src.Close()
	if src.StartVbiFrame() != 1001 || src.EndVbiFrame() != 1004 {
		t.Fatalf("unexpected range %d..%d", src.StartVbiFrame(), src.EndVbiFrame())
	}
}

func TestOpenRejects(t *testing.T) {
	cases := []struct {
		name string
		opts []testsupport.CaptureOption
	}{
		{"unmapped", []testsupport.CaptureOption{testsupport.Unmapped()}},
		{"no vbi", []testsupport.CaptureOption{testsupport.WithVBI(func(int) (a, b [3]int) { return })}},
		{"cav start below one", []testsupport.CaptureOption{testsupport.WithFrames(0, 3)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			testsupport.WriteCapture(t, fs, "/cap/bad.tbc", tc.opts...)
			_, err := source.Open(context.Background(), 0, "/cap/bad.tbc", source.Options{Fs: fs})
			if !errors.Is(err, faults.ErrSourceOpen) {
				t.Fatalf("expected ErrSourceOpen, got %v", err)
			}
		})
	}
}

func TestOpenMissingMetadata(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/cap/raw.tbc", make([]byte, 96), 0o644); err != nil {
		t.Fatalf("write raw: %v", err)
	}
	_, err := source.Open(context.Background(), 0, "/cap/raw.tbc", source.Options{Fs: fs})
	if !errors.Is(err, faults.ErrSourceOpen) {
		t.Fatalf("expected ErrSourceOpen, got %v", err)
	}
}

func TestOpenRejectsTruncatedSamples(t *testing.T) {
	fs := afero.NewMemMapFs()
	testsupport.WriteCapture(t, fs, "/cap/a.tbc")
	if err := fs.Remove("/cap/a.tbc"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := afero.WriteFile(fs, "/cap/a.tbc", make([]byte, 8*6*2*3), 0o644); err != nil {
		t.Fatalf("write truncated: %v", err)
	}
	_, err := source.Open(context.Background(), 0, "/cap/a.tbc", source.Options{Fs: fs})
	if !errors.Is(err, faults.ErrSourceOpen) {
		t.Fatalf("expected ErrSourceOpen for truncated samples, got %v", err)
	}
}

func TestFrameAvailability(t *testing.T) {
	fs := afero.NewMemMapFs()
	testsupport.WriteCapture(t, fs, "/cap/a.tbc", testsupport.WithFrames(5, 4), testsupport.WithPaddedField(6, 1))

	src := openOne(t, fs, "/cap/a.tbc")
	cases := map[int]bool{4: false, 5: true, 6: false, 7: true, 8: true, 9: false}
	for frame, want := range cases {
		if got := src.IsFrameAvailable(frame); got != want {
			t.Fatalf("IsFrameAvailable(%d) = %v, want %v", frame, got, want)
		}
	}
}

func TestFrameDropoutsRenumberLines(t *testing.T) {
	fs := afero.NewMemMapFs()
	testsupport.WriteCapture(t, fs, "/cap/a.tbc",
		testsupport.WithFieldDropouts(2, 0, dropout.List{{StartX: 1, EndX: 3, Line: 3}}),
		testsupport.WithFieldDropouts(2, 1, dropout.List{{StartX: 4, EndX: 6, Line: 3}}),
		testsupport.WithPaddedField(3, 0),
		testsupport.WithFieldDropouts(3, 1, dropout.List{{StartX: 0, EndX: 1, Line: 1}}),
	)

	src := openOne(t, fs, "/cap/a.tbc")
	got := src.FrameDropouts(2)
	want := dropout.List{{StartX: 1, EndX: 3, Line: 5}, {StartX: 4, EndX: 6, Line: 6}}
	if len(got) != len(want) {
		t.Fatalf("unexpected dropouts: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dropout %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if l := src.FrameDropouts(3); len(l) != 0 {
		t.Fatalf("expected no dropouts for unavailable frame, got %v", l)
	}
	if l := src.FrameDropouts(1); len(l) != 0 {
		t.Fatalf("expected no dropouts for clean frame, got %v", l)
	}
}

func fieldTagged(frame, field, x, y int) uint16 {
	return uint16(frame*1000 + field*100 + y*10 + x)
}

func TestFrameFieldDataAndReverseOrder(t *testing.T) {
	fs := afero.NewMemMapFs()
	testsupport.WriteCapture(t, fs, "/cap/a.tbc", testsupport.WithGeometry(4, 3), testsupport.WithSamples(fieldTagged))

	src := openOne(t, fs, "/cap/a.tbc")
	first, second, err := src.FrameFieldData(3)
	if err != nil {
		t.Fatalf("FrameFieldData returned error: %v", err)
	}
	if first[1*4+2] != fieldTagged(3, 0, 2, 1) || second[0] != fieldTagged(3, 1, 0, 0) {
		t.Fatalf("unexpected samples first=%d second=%d", first[6], second[0])
	}

	src.SetReverseFieldOrder(true)
	first, second, err = src.FrameFieldData(3)
	if err != nil {
		t.Fatalf("FrameFieldData returned error: %v", err)
	}
	if first[0] != fieldTagged(3, 1, 0, 0) || second[0] != fieldTagged(3, 0, 0, 0) {
		t.Fatalf("expected swapped fields, got first=%d second=%d", first[0], second[0])
	}
	a, b := src.FieldNumbers(3)
	if a != 6 || b != 5 {
		t.Fatalf("unexpected reversed field numbers %d/%d", a, b)
	}

	if _, _, err := src.FrameFieldData(99); err == nil {
		t.Fatal("expected error for frame outside range")
	}
}

func TestLeadingOrphanFieldIsSkipped(t *testing.T) {
	fs := afero.NewMemMapFs()
	testsupport.WriteCapture(t, fs, "/cap/a.tbc", testsupport.WithFrames(2, 3), testsupport.WithLeadingSecondField(), testsupport.WithSamples(fieldTagged))

	src := openOne(t, fs, "/cap/a.tbc")
	if src.StartVbiFrame() != 2 || src.EndVbiFrame() != 4 {
		t.Fatalf("unexpected range %d..%d", src.StartVbiFrame(), src.EndVbiFrame())
	}
	first, _, err := src.FrameFieldData(2)
	if err != nil {
		t.Fatalf("FrameFieldData returned error: %v", err)
	}
	if first[0] != fieldTagged(2, 0, 0, 0) {
		t.Fatalf("expected first field of frame 2, got %d", first[0])
	}
}
