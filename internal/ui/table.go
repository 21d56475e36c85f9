package ui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lineus/lineus/internal/discovery"
)

// RenderTable lays out rows in left-aligned columns under bold headers.
// Short rows are padded with empty cells.
func RenderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < len(headers) && i < len(row); i++ {
			if w := lipgloss.Width(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	renderRow := func(cells []string, style lipgloss.Style) string {
		parts := make([]string, len(headers))
		for i := range headers {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = style.Render(cell + strings.Repeat(" ", widths[i]-lipgloss.Width(cell)))
		}
		return "  " + strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	lines := []string{renderRow(headers, TableHeaderStyle)}
	for _, row := range rows {
		lines = append(lines, renderRow(row, TableCellStyle))
	}
	return strings.Join(lines, "\n")
}

// DeviceRows converts device handles to table rows
func DeviceRows(devices []discovery.DeviceHandle) [][]string {
	rows := make([][]string, 0, len(devices))
	for i, d := range devices {
		rows = append(rows, []string{strconv.Itoa(i + 1), d.Name, d.DNSName, d.IP, strconv.Itoa(d.Port)})
	}
	return rows
}

// DeviceHeaders are the column titles for DeviceRows
var DeviceHeaders = []string{"#", "Name", "Host", "IP", "Port"}

// RenderDeviceTable renders a device list
func RenderDeviceTable(devices []discovery.DeviceHandle) string {
	return RenderTable(DeviceHeaders, DeviceRows(devices))
}

// PrintDevices prints a device list
func (p *Printer) PrintDevices(devices []discovery.DeviceHandle) {
	p.Println(RenderDeviceTable(devices))
}
