// seed_catalog genera un script SQL idempotente para poblar departamentos y productos de una
// organización a partir de un CSV exportado por el sistema de inventario anterior (ISO-8859-1).
//
// Uso: go run ./cmd/seed_catalog <organization_id> [ruta/catalogo.csv]
// Por defecto busca catalogo.csv en el directorio actual.
// Columnas: tipo (DEPARTAMENTO|PRODUCTO), codigo, nombre, unidad (solo productos).
// Escribe: internal/infrastructure/postgres/migrations/002_seed_catalog.sql
package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

type catalogRow struct {
	code string
	name string
	unit string
}

type catalog struct {
	departments []catalogRow
	products    []catalogRow
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Uso: seed_catalog <organization_id> [catalogo.csv]")
		os.Exit(2)
	}
	orgID, err := uuid.Parse(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "organization_id inválido: %v\n", err)
		os.Exit(2)
	}
	csvPath := "catalogo.csv"
	if len(os.Args) > 2 {
		csvPath = os.Args[2]
	}

	f, err := os.Open(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Abrir CSV: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	cat, err := readCatalog(transform.NewReader(f, charmap.ISO8859_1.NewDecoder()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Leer CSV: %v\n", err)
		os.Exit(1)
	}

	moduleRoot := findModuleRoot()
	outPath := filepath.Join(moduleRoot, "internal", "infrastructure", "postgres", "migrations", "002_seed_catalog.sql")
	out, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Crear archivo: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()

	if err := writeSQL(out, orgID, cat); err != nil {
		fmt.Fprintf(os.Stderr, "Escribir SQL: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generado %s: %d departamentos, %d productos\n", outPath, len(cat.departments), len(cat.products))
}

// readCatalog lee el CSV ya decodificado a UTF-8. La primera fila es encabezado.
// Filas vacías o de tipo desconocido se ignoran; un código repetido conserva la última fila.
func readCatalog(r io.Reader) (*catalog, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("encabezado: %w", err)
	}

	departments := map[string]catalogRow{}
	products := map[string]catalogRow{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) < 3 {
			continue
		}
		row := catalogRow{
			code: strings.TrimSpace(record[1]),
			name: strings.TrimSpace(record[2]),
		}
		if row.code == "" || row.name == "" {
			continue
		}
		switch strings.ToUpper(strings.TrimSpace(record[0])) {
		case "DEPARTAMENTO":
			departments[row.code] = row
		case "PRODUCTO":
			row.unit = "UND"
			if len(record) > 3 && strings.TrimSpace(record[3]) != "" {
				row.unit = strings.ToUpper(strings.TrimSpace(record[3]))
			}
			products[row.code] = row
		}
	}
	return &catalog{departments: sorted(departments), products: sorted(products)}, nil
}

// writeSQL emite INSERT ... ON CONFLICT DO NOTHING. Los ID se derivan de la organización y el
// código, así que ejecutar el script dos veces no duplica filas.
func writeSQL(w io.Writer, orgID uuid.UUID, cat *catalog) error {
	var b strings.Builder
	b.WriteString("-- Catálogo inicial de departamentos y productos\n")
	b.WriteString("-- Generado por cmd/seed_catalog\n\n")

	if len(cat.departments) > 0 {
		b.WriteString("-- 1. Departamentos\n")
		b.WriteString("INSERT INTO departments (id, organization_id, code, name) VALUES\n")
		for i, d := range cat.departments {
			fmt.Fprintf(&b, "  ('%s', '%s', '%s', '%s')%s\n",
				catalogID(orgID, "department", d.code), orgID, escapeSQL(d.code), escapeSQL(d.name), sep(i, len(cat.departments)))
		}
		b.WriteString("ON CONFLICT (organization_id, code) DO NOTHING;\n\n")
	}

	if len(cat.products) > 0 {
		b.WriteString("-- 2. Productos\n")
		b.WriteString("INSERT INTO products (id, organization_id, code, name, base_unit) VALUES\n")
		for i, p := range cat.products {
			fmt.Fprintf(&b, "  ('%s', '%s', '%s', '%s', '%s')%s\n",
				catalogID(orgID, "product", p.code), orgID, escapeSQL(p.code), escapeSQL(p.name), escapeSQL(p.unit), sep(i, len(cat.products)))
		}
		b.WriteString("ON CONFLICT (organization_id, code) DO NOTHING;\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func catalogID(orgID uuid.UUID, kind, code string) uuid.UUID {
	return uuid.NewSHA1(orgID, []byte(kind+":"+code))
}

func sorted(m map[string]catalogRow) []catalogRow {
	rows := make([]catalogRow, 0, len(m))
	for _, r := range m {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].code < rows[j].code })
	return rows
}

func sep(i, n int) string {
	if i < n-1 {
		return ","
	}
	return ""
}

func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func findModuleRoot() string {
	dir, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
