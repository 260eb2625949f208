package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	pollInterval = 250 * time.Millisecond
	scanBufBytes = 64 * 1024
	maxLineBytes = 1024 * 1024
)

// TailOptions controls a single Tail call. A negative Offset requests the
// last Limit lines of the file; a non-negative Offset resumes reading at
// that byte position.
type TailOptions struct {
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
}

// TailResult carries the lines read and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads log lines from path according to opts. A missing file is not an
// error; the result simply carries no lines and a zero offset so the caller
// can retry once the daemon starts writing. When Follow is set and no new
// lines are available, Tail polls until Wait elapses or ctx is done.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return TailResult{}, nil
		}
		return TailResult{Offset: opts.Offset}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("log path %q is a directory", path)
	}

	wait := opts.Wait
	if wait < 0 {
		wait = 0
	}

	var lines []string
	var offset int64
	if opts.Offset < 0 {
		lines, offset, err = lastLines(path, opts.Limit)
	} else {
		start := opts.Offset
		if start > info.Size() {
			start = info.Size()
		}
		lines, offset, err = linesFrom(path, start)
	}
	if err != nil {
		return TailResult{Offset: opts.Offset}, err
	}

	if opts.Follow && wait > 0 && len(lines) == 0 {
		return awaitLines(ctx, path, offset, wait)
	}
	return TailResult{Lines: lines, Offset: offset}, nil
}

// lastLines returns up to limit trailing lines and the end-of-file offset.
// A non-positive limit skips the content and just reports the offset, which
// is how follow mode starts at the tail of an existing file.
func lastLines(path string, limit int) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, fmt.Errorf("seek log file: %w", err)
		}
		return nil, end, nil
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, scanBufBytes), maxLineBytes)

	ring := make([]string, limit)
	count := 0
	next := 0
	for scanner.Scan() {
		ring[next] = scanner.Text()
		next = (next + 1) % limit
		if count < limit {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}

	end, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}

	lines := make([]string, count)
	if count == limit {
		for i := 0; i < count; i++ {
			lines[i] = ring[(next+i)%limit]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, end, nil
}

// linesFrom reads every complete line at or after offset and returns the new
// end-of-read offset.
func linesFrom(path string, offset int64) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, scanBufBytes), maxLineBytes)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}

	end, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, 0, fmt.Errorf("determine log offset: %w", err)
	}
	return lines, end, nil
}

// awaitLines polls for new content starting at offset until lines appear,
// wait elapses, or ctx is done.
func awaitLines(ctx context.Context, path string, offset int64, wait time.Duration) (TailResult, error) {
	deadline := time.Now().Add(wait)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	result := TailResult{Offset: offset}
	for {
		lines, end, err := linesFrom(path, result.Offset)
		if err != nil {
			return result, err
		}
		if len(lines) > 0 {
			result.Lines = lines
			result.Offset = end
			return result, nil
		}
		result.Offset = end

		if !time.Now().Before(deadline) {
			return result, nil
		}
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-ticker.C:
		}
	}
}
