package wal

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type entry struct {
	Seq  int    `json:"seq"`
	Note string `json:"note"`
}

func readEntries(t *testing.T, w *WAL) []entry {
	t.Helper()
	var out []entry
	err := w.ReadAll(func(raw json.RawMessage) error {
		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadAll err=%v", err)
	}
	return out
}

func TestWriteAndReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 3; i++ {
		if err := w.Write(entry{Seq: i, Note: "n"}); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	// 重新開啟後仍可讀回且能繼續追加
	w, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	got := readEntries(t, w)
	if len(got) != 3 || got[0].Seq != 1 || got[2].Seq != 3 {
		t.Fatalf("entries=%+v", got)
	}
	if err := w.Write(entry{Seq: 4}); err != nil {
		t.Fatal(err)
	}
	if got := readEntries(t, w); len(got) != 4 {
		t.Fatalf("len=%d want 4", len(got))
	}
}

func TestReadAllTruncatesTornTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	content := `{"seq":1,"note":"a"}` + "\n" + `{"seq":2,"no`
	if err := os.WriteFile(path, []byte(content), FileModeDefault); err != nil {
		t.Fatal(err)
	}
	w, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	got := readEntries(t, w)
	if len(got) != 1 || got[0].Seq != 1 {
		t.Fatalf("entries=%+v", got)
	}
	if err := w.Write(entry{Seq: 2, Note: "b"}); err != nil {
		t.Fatal(err)
	}
	if got := readEntries(t, w); len(got) != 2 || got[1].Note != "b" {
		t.Fatalf("entries after rewrite=%+v", got)
	}
}

func TestReadAllCallbackError(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), "wal.log"))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	_ = w.Write(entry{Seq: 1})

	boom := errors.New("boom")
	if err := w.ReadAll(func(json.RawMessage) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("err=%v want boom", err)
	}
}

func TestWriteAfterClose(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), "wal.log"))
	if err != nil {
		t.Fatal(err)
	}
	_ = w.Close()
	if err := w.Write(entry{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("err=%v want ErrClosed", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second close err=%v", err)
	}
}

// faultyFile 在真實檔案上注入寫入失敗
type faultyFile struct {
	file
	shortWrite   bool
	syncFailures int
	failTruncate bool
}

var errDisk = errors.New("disk error")

func (f *faultyFile) Write(p []byte) (int, error) {
	if f.shortWrite {
		n, _ := f.file.Write(p[:len(p)/2])
		return n, errDisk
	}
	return f.file.Write(p)
}

func (f *faultyFile) Sync() error {
	if f.syncFailures > 0 {
		f.syncFailures--
		return errDisk
	}
	return f.file.Sync()
}

func (f *faultyFile) Truncate(size int64) error {
	if f.failTruncate {
		return errDisk
	}
	return f.file.Truncate(size)
}

func openWithFault(t *testing.T) (*WAL, *faultyFile) {
	t.Helper()
	w, err := Open(filepath.Join(t.TempDir(), "wal.log"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = w.Close() })
	if err := w.Write(entry{Seq: 1}); err != nil {
		t.Fatal(err)
	}
	ff := &faultyFile{file: w.file}
	w.file = ff
	return w, ff
}

func TestWriteRollsBackTornRecord(t *testing.T) {
	w, ff := openWithFault(t)
	ff.shortWrite = true
	if err := w.Write(entry{Seq: 2, Note: "torn"}); !errors.Is(err, errDisk) || errors.Is(err, ErrFailed) {
		t.Fatalf("err=%v want disk error", err)
	}

	ff.shortWrite = false
	if err := w.Write(entry{Seq: 3}); err != nil {
		t.Fatalf("write after rollback err=%v", err)
	}
	got := readEntries(t, w)
	if len(got) != 2 || got[0].Seq != 1 || got[1].Seq != 3 {
		t.Fatalf("entries=%+v", got)
	}
}

func TestWriteRollsBackOnSyncFailure(t *testing.T) {
	w, ff := openWithFault(t)
	ff.syncFailures = 1
	if err := w.Write(entry{Seq: 2}); !errors.Is(err, errDisk) {
		t.Fatalf("err=%v want disk error", err)
	}
	if got := readEntries(t, w); len(got) != 1 || got[0].Seq != 1 {
		t.Fatalf("failed record still in file: %+v", got)
	}
}

func TestWriteFailsClosedWhenRollbackFails(t *testing.T) {
	w, ff := openWithFault(t)
	ff.shortWrite = true
	ff.failTruncate = true
	if err := w.Write(entry{Seq: 2}); !errors.Is(err, ErrFailed) {
		t.Fatalf("err=%v want ErrFailed", err)
	}

	ff.shortWrite = false
	ff.failTruncate = false
	if err := w.Write(entry{Seq: 3}); !errors.Is(err, ErrFailed) {
		t.Fatalf("err=%v want ErrFailed after unrecovered failure", err)
	}
}
