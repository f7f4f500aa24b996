// Package dhcp6log is a small colorized, NO_COLOR-aware logger matching
// the client.Logger contract: one color.Color per level, with color
// output disabled globally when NO_COLOR is set or output isn't a
// terminal.
package dhcp6log

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	debugColor = color.New(color.FgWhite, color.Faint)
	infoColor  = color.New(color.FgBlue)
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed, color.Bold)
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}
}

// Logger writes leveled, colorized lines tagged with a component name
// (typically the managed interface) to an io.Writer.
type Logger struct {
	Component string
	Out       io.Writer
}

// New returns a Logger that writes to os.Stderr, tagged with component.
func New(component string) Logger {
	return Logger{Component: component, Out: os.Stderr}
}

func (l Logger) printf(c *color.Color, level, format string, args ...any) {
	prefix := fmt.Sprintf("%s [%s] ", level, l.Component)
	line := fmt.Sprintf(prefix+format+"\n", args...)
	if color.NoColor {
		fmt.Fprint(l.Out, line)
		return
	}
	fmt.Fprint(l.Out, c.Sprint(line))
}

// Debugf implements client.Logger.
func (l Logger) Debugf(format string, args ...any) { l.printf(debugColor, "DEBUG", format, args...) }

// Infof implements client.Logger.
func (l Logger) Infof(format string, args ...any) { l.printf(infoColor, "INFO", format, args...) }

// Warnf implements client.Logger.
func (l Logger) Warnf(format string, args ...any) { l.printf(warnColor, "WARN", format, args...) }

// Errorf implements client.Logger.
func (l Logger) Errorf(format string, args ...any) { l.printf(errorColor, "ERROR", format, args...) }
