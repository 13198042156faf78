package wal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
)

// rw-r--r-- (擁有者讀寫，其他人唯讀)
const FileModeDefault fs.FileMode = 0644

var (
	// ErrClosed WAL 已關閉
	ErrClosed = errors.New("wal: closed")
	// ErrFailed 寫入失敗且無法回復檔案長度，之後的寫入一律拒絕
	ErrFailed = errors.New("wal: failed")
)

// file WAL 需要的檔案操作 (*os.File)
type file interface {
	io.ReadWriteSeeker
	io.Closer
	Sync() error
	Truncate(size int64) error
}

// WAL 以 JSON Lines 格式追加寫入的 Write-Ahead Log
// 每次 Write 都會 fsync，回傳成功代表記錄已落地；回傳錯誤代表檔案中沒有這筆記錄
type WAL struct {
	path string
	file file
	mu   sync.Mutex
	// failed 回復失敗時記下原因
	failed error
}

// Open 開啟或建立一個 WAL 檔案
// O_APPEND 每次寫入時自動跳到文件末尾
func Open(path string) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileModeDefault)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}
	return &WAL{path: path, file: f}, nil
}

// Path 回傳檔案路徑
func (w *WAL) Path() string {
	return w.path
}

// Write 寫入一筆資料並刷入硬碟
func (w *WAL) Write(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("wal: encode: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return ErrClosed
	}
	if w.failed != nil {
		return fmt.Errorf("%w: %v", ErrFailed, w.failed)
	}

	// O_APPEND 下寫入一定落在檔尾，先記下目前長度
	offset, err := w.file.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("wal: seek: %w", err)
	}
	if _, err := w.file.Write(line); err != nil {
		return w.rollback(offset, fmt.Errorf("wal: write: %w", err))
	}
	if err := w.file.Sync(); err != nil {
		return w.rollback(offset, fmt.Errorf("wal: sync: %w", err))
	}
	return nil
}

// rollback 把檔案截回寫入前的長度，讓失敗的記錄不會在重啟後出現
// 截斷本身失敗時 WAL 進入失敗狀態
func (w *WAL) rollback(offset int64, cause error) error {
	if err := w.file.Truncate(offset); err != nil {
		w.failed = fmt.Errorf("truncate to %d after %v: %w", offset, cause, err)
		return fmt.Errorf("%w: %v", ErrFailed, w.failed)
	}
	if err := w.file.Sync(); err != nil {
		w.failed = fmt.Errorf("sync after truncate to %d: %w", offset, err)
		return fmt.Errorf("%w: %v", ErrFailed, w.failed)
	}
	return cause
}

// Close 關閉檔案，重複呼叫無副作用
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// ReadAll 從頭依序讀取所有記錄
// callback 每次收到一筆原始 JSON，避免一次將所有資料載入記憶體
//
// 若檔案尾端是寫到一半的記錄 (程式在寫入途中崩潰)，會截掉殘缺部分後正常回傳
func (w *WAL) ReadAll(callback func(raw json.RawMessage) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return ErrClosed
	}

	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	decoder := json.NewDecoder(w.file)
	var good int64
	for {
		var raw json.RawMessage
		err := decoder.Decode(&raw)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			// 殘缺的尾端記錄
			return w.file.Truncate(good)
		}
		if err != nil {
			return fmt.Errorf("wal: corrupted record at offset %d: %w", good, err)
		}
		if err := callback(raw); err != nil {
			return err
		}
		good = decoder.InputOffset()
	}
}
