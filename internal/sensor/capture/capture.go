// Package capture records still images and audio clips to local files by
// running an external capture program, or synthesises test media when no
// program is configured.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/domain"
	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/sensor"
)

// PathPlaceholder is replaced by the output file path in a capture command.
const PathPlaceholder = "{path}"

// Default commands for the Raspberry Pi camera and microphone.
const (
	DefaultCameraCommand = "libcamera-still -n -t 1 --width 1024 --height 768 -o {path}"
	DefaultMicCommand    = "arecord -q -f S16_LE -r 44100 -c 2 -d 2 {path}"
)

// waitDelay bounds how long a killed capture may keep its output pipes open.
const waitDelay = 2 * time.Second

// Capturer is the adapter of one media class.
type Capturer struct {
	class     domain.SensorClass
	mediaType domain.MediaType
	dir       string
	argv      []string // empty = synthesise
}

// New builds a capturer writing into dir. An empty command synthesises a
// test card or tone instead of touching hardware.
func New(class domain.SensorClass, dir, command string) (*Capturer, error) {
	mt := domain.MediaTypeOf(class)
	if mt == "" {
		return nil, fmt.Errorf("capture: %w: %s is not a media class", domain.ErrUnknownClass, class)
	}
	argv := strings.Fields(command)
	if len(argv) > 0 && !strings.Contains(command, PathPlaceholder) {
		return nil, fmt.Errorf("capture: command for %s must contain %s", class, PathPlaceholder)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("capture: media dir: %w", err)
	}
	return &Capturer{class: class, mediaType: mt, dir: dir, argv: argv}, nil
}

// Read captures one file and returns its path.
func (c *Capturer) Read(ctx context.Context) (domain.Reading, error) {
	name := fmt.Sprintf("%s-%s%s", strings.ToLower(string(c.class)), uuid.NewString(), c.mediaType.Extension())
	path := filepath.Join(c.dir, name)

	var err error
	if len(c.argv) == 0 {
		err = c.synthesise(path)
	} else {
		err = c.run(ctx, path)
	}
	if err != nil {
		os.Remove(path)
		return nil, sensor.Wrap(c.class, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, sensor.NewError(c.class, sensor.KindDevice, fmt.Errorf("capture produced no file: %w", err))
	}
	if info.Size() == 0 {
		os.Remove(path)
		return nil, sensor.NewError(c.class, sensor.KindDevice, errors.New("capture produced an empty file"))
	}
	return domain.MediaReading{Path: path, MediaType: c.mediaType}, nil
}

func (c *Capturer) run(ctx context.Context, path string) error {
	args := make([]string, len(c.argv))
	for i, a := range c.argv {
		args[i] = strings.ReplaceAll(a, PathPlaceholder, path)
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.WaitDelay = waitDelay
	out, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", args[0], ctx.Err())
	}
	if err != nil {
		return fmt.Errorf("%s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (c *Capturer) synthesise(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	switch c.mediaType {
	case domain.MediaImage:
		err = writeTestCard(f)
	default:
		err = writeTone(f)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
