// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

// Package dataset loads the MovieLens-style training corpus.
//
// The corpus is three "::"-delimited text files: ratings (UserID::MovieID::
// Rating::Timestamp), users (UserID::Gender::Age::Occupation::Zip-code),
// and movies (MovieID::Title::Genres, genres pipe-separated). Movie titles
// in the reference corpus are Latin-1 encoded; loaders transcode them to
// UTF-8. Malformed rows are skipped and counted, not fatal: a corpus with a
// few bad lines is still a corpus.
package dataset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/tomtom215/fairlens/internal/recommend"
)

const fieldSep = "::"

// Scanner buffer large enough for any sane corpus line.
const maxLineBytes = 1 << 16

// ReadInteractions parses rating rows from r.
func ReadInteractions(r io.Reader, logger zerolog.Logger) ([]recommend.Interaction, error) {
	var out []recommend.Interaction
	skipped := 0

	err := eachLine(r, func(lineNo int, line string) {
		fields := strings.Split(line, fieldSep)
		if len(fields) != 4 {
			skipped++
			return
		}
		rating, err1 := strconv.ParseFloat(fields[2], 64)
		unix, err2 := strconv.ParseInt(fields[3], 10, 64)
		if err1 != nil || err2 != nil || fields[0] == "" || fields[1] == "" {
			skipped++
			return
		}
		out = append(out, recommend.Interaction{
			UserID:    fields[0],
			ItemID:    fields[1],
			Rating:    rating,
			Timestamp: time.Unix(unix, 0).UTC(),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read ratings: %w", err)
	}
	if skipped > 0 {
		logger.Warn().Int("skipped", skipped).Int("loaded", len(out)).
			Msg("Skipped malformed rating rows")
	}
	return out, nil
}

// ReadUsers parses user rows from r.
func ReadUsers(r io.Reader, logger zerolog.Logger) ([]recommend.UserProfile, error) {
	var out []recommend.UserProfile
	skipped := 0

	err := eachLine(r, func(lineNo int, line string) {
		fields := strings.Split(line, fieldSep)
		if len(fields) != 5 || fields[0] == "" {
			skipped++
			return
		}
		out = append(out, recommend.UserProfile{
			UserID:     fields[0],
			Gender:     fields[1],
			AgeBracket: fields[2],
			Occupation: fields[3],
			Region:     fields[4],
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read users: %w", err)
	}
	if skipped > 0 {
		logger.Warn().Int("skipped", skipped).Int("loaded", len(out)).
			Msg("Skipped malformed user rows")
	}
	return out, nil
}

// ReadMovies parses movie rows from r, transcoding Latin-1 titles.
func ReadMovies(r io.Reader, logger zerolog.Logger) ([]recommend.ItemProfile, error) {
	var out []recommend.ItemProfile
	skipped := 0

	err := eachLine(r, func(lineNo int, line string) {
		fields := strings.Split(line, fieldSep)
		if len(fields) != 3 || fields[0] == "" {
			skipped++
			return
		}
		var genres []string
		if fields[2] != "" {
			genres = strings.Split(fields[2], "|")
		}
		out = append(out, recommend.ItemProfile{
			ItemID: fields[0],
			Title:  latin1ToUTF8(fields[1]),
			Genres: genres,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read movies: %w", err)
	}
	if skipped > 0 {
		logger.Warn().Int("skipped", skipped).Int("loaded", len(out)).
			Msg("Skipped malformed movie rows")
	}
	return out, nil
}

// LoadInteractions reads rating rows from a file.
func LoadInteractions(path string, logger zerolog.Logger) ([]recommend.Interaction, error) {
	return loadFile(path, logger, ReadInteractions)
}

// LoadUsers reads user rows from a file.
func LoadUsers(path string, logger zerolog.Logger) ([]recommend.UserProfile, error) {
	return loadFile(path, logger, ReadUsers)
}

// LoadMovies reads movie rows from a file.
func LoadMovies(path string, logger zerolog.Logger) ([]recommend.ItemProfile, error) {
	return loadFile(path, logger, ReadMovies)
}

func loadFile[T any](path string, logger zerolog.Logger, read func(io.Reader, zerolog.Logger) ([]T, error)) ([]T, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // close after read is not actionable

	return read(f, logger)
}

// eachLine calls fn for every non-empty line. Line numbers are 1-based.
func eachLine(r io.Reader, fn func(lineNo int, line string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineBytes)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		fn(lineNo, line)
	}
	return sc.Err()
}

// latin1ToUTF8 transcodes a Latin-1 byte string to UTF-8. Input that is
// already valid UTF-8 passes through unchanged, so mixed corpora are safe.
func latin1ToUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) * 2)
	for i := 0; i < len(s); i++ {
		b.WriteRune(rune(s[i]))
	}
	return b.String()
}
