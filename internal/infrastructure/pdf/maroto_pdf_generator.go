// Package pdf implementa la nota de despacho de un traslado entre departamentos.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Título + Código  │  Prioridad + Fecha               │
//	│  ─────────────────────────────────────────────────────────  │
//	│  ORIGEN (proveedor) → DESTINO (solicitante)                  │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Producto | Lote | Vence | Enviado | Recibido         │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER: QR con el código + firmas de entrega y recibido     │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strconv"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/jhoicas/traslados-api/internal/application/dto"
	"github.com/jhoicas/traslados-api/internal/application/transfer"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
)

var _ transfer.DispatchNoteGenerator = (*MarotoDispatchNoteGenerator)(nil)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorWhite   = &props.Color{Red: 255, Green: 255, Blue: 255}
	colorAlert   = &props.Color{Red: 170, Green: 30, Blue: 30}
)

// ── Generator ─────────────────────────────────────────────────────────────────

// MarotoDispatchNoteGenerator implementa transfer.DispatchNoteGenerator usando Maroto v2.
type MarotoDispatchNoteGenerator struct{}

// NewMarotoDispatchNoteGenerator construye el generador.
func NewMarotoDispatchNoteGenerator() *MarotoDispatchNoteGenerator {
	return &MarotoDispatchNoteGenerator{}
}

// GenerateDispatchNote genera el PDF y devuelve sus bytes. Solo lista ítems preparados o entregados.
func (g *MarotoDispatchNoteGenerator) GenerateDispatchNote(_ context.Context, note *dto.DispatchNoteDTO) ([]byte, error) {
	t := note.Transfer
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Nota de despacho "+t.Code, true).
		WithAuthor(nonEmpty(note.GeneratedBy.Name, note.GeneratedBy.UserID), true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(note))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(departmentsRow(t))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	for _, r := range tableDetailRows(t.Items) {
		m.AddRows(r)
	}

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	for _, r := range footerRows(note) {
		m.AddRows(r)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

// headerRow: título y código (izq), prioridad y fecha de generación (der).
func headerRow(note *dto.DispatchNoteDTO) core.Row {
	t := note.Transfer
	priorityColor := colorGray
	if t.Priority != string(entity.PriorityNormal) {
		priorityColor = colorAlert
	}
	return row.New(18).Add(
		col.New(7).Add(
			text.New(t.Title, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("Traslado: "+t.Code, props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("NOTA DE DESPACHO", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New("Prioridad: "+t.Priority, props.Text{
				Style: fontstyle.Bold, Size: 10, Align: align.Right, Top: 7, Color: priorityColor,
			}),
			text.New("Fecha: "+note.GeneratedAt.Format("02/01/2006 15:04"), props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

// departmentsRow: departamento que surte y departamento que recibe.
func departmentsRow(t dto.TransferResponse) core.Row {
	block := func(title string, d dto.NamedRef) core.Col {
		return col.New(6).Add(
			text.New(title, props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(nonEmpty(d.Name, d.ID), props.Text{
				Style: fontstyle.Bold, Size: 10, Top: 6,
			}),
			text.New("Código: "+nonEmpty(d.Code, "—"), props.Text{Size: 8, Top: 12, Color: colorGray}),
		)
	}
	return row.New(18).Add(
		block("ORIGEN (SURTE)", t.SupplyingDepartment),
		block("DESTINO (SOLICITA)", t.RequestingDepartment),
	)
}

// tableHeaderRow: cabecera de la tabla de lotes.
func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorWhite, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).WithStyle(&props.Cell{BackgroundColor: colorPrimary}).Add(
		h("Producto", 4, align.Left),
		h("Lote", 2, align.Left),
		h("Vence", 2, align.Center),
		h("Enviado", 2, align.Right),
		h("Recibido", 2, align.Right),
	)
}

// tableDetailRows: una fila por lote escogido de cada ítem preparado o entregado.
func tableDetailRows(items []dto.TransferItemDTO) []core.Row {
	cell := func(s string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(s, props.Text{Size: 8, Align: a, Top: 1, Left: 1, Right: 1}))
	}
	var result []core.Row
	for _, it := range items {
		if it.Status != string(entity.ItemPrepared) && it.Status != string(entity.ItemDelivered) {
			continue
		}
		for _, b := range it.Batches {
			expiry := "—"
			if b.ExpiryDate != nil {
				expiry = b.ExpiryDate.Format("02/01/2006")
			}
			received := "—"
			if b.ReceivedQuantity != nil {
				received = formatQuantity(*b.ReceivedQuantity)
			}
			result = append(result, row.New(7).Add(
				cell(nonEmpty(it.Product.Name, it.Product.ID), 4, align.Left),
				cell(b.LotNumber, 2, align.Left),
				cell(expiry, 2, align.Center),
				cell(formatQuantity(b.Quantity), 2, align.Right),
				cell(received, 2, align.Right),
			))
		}
	}
	return result
}

// footerRows: QR con el código del traslado y espacio para firmas.
func footerRows(note *dto.DispatchNoteDTO) []core.Row {
	t := note.Transfer
	return []core.Row{
		row.New(40).Add(
			col.New(3).Add(code.NewQr(t.Code, props.Rect{
				Percent: 95,
				Center:  true,
			})),
			col.New(9).Add(
				text.New("Escanee el código para ubicar el traslado "+t.Code+".", props.Text{
					Size: 8, Top: 4, Left: 3, Color: colorGray,
				}),
				text.New("Generado por: "+nonEmpty(note.GeneratedBy.Name, note.GeneratedBy.UserID), props.Text{
					Size: 8, Top: 10, Left: 3, Color: colorGray,
				}),
				text.New("Entrega: ______________________", props.Text{
					Style: fontstyle.Bold, Size: 9, Top: 22, Left: 3,
				}),
				text.New("Recibe:  ______________________", props.Text{
					Style: fontstyle.Bold, Size: 9, Top: 30, Left: 3,
				}),
			),
		),
	}
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

// formatQuantity inserta puntos de miles. Ej: 25000 → "25.000".
func formatQuantity(q int64) string {
	s := strconv.FormatInt(q, 10)
	n := len(s)
	if n <= 3 {
		return s
	}
	buf := make([]byte, 0, n+n/3)
	for i, c := range []byte(s) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, c)
	}
	return string(buf)
}
