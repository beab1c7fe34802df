package schema

import (
	"fmt"

	"golang.org/x/xerrors"
)

// ErrInvalidGraph сигнализирует о нарушении целостности модели.
// Это ошибка загрузчика метаданных, а не ожидаемая ситуация.
var ErrInvalidGraph = xerrors.New("invalid schema graph")

func invalidf(format string, args ...any) error {
	return xerrors.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidGraph)
}
