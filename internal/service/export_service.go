package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"smartflow/backend/internal/dto"
	"smartflow/backend/internal/model"
	"smartflow/backend/internal/repository"
)

// ── export errors ──

var (
	ErrExportEmpty        = errors.New("No hay citas ni turnos para exportar hoy")
	ErrExportGenerateFail = errors.New("No se pudo generar el archivo Excel")
)

// Sheet names of the day export.
const (
	sheetAppointments = "Citas"
	sheetQueue        = "Fila virtual"
)

// ExportService renders the day board as a spreadsheet.
//
// The workbook is returned as a bytes.Buffer; the handler sets the download
// headers and writes it out.
type ExportService interface {
	// ExportToday writes today's appointments (cancelled excluded) and the
	// virtual queue of the day to an .xlsx workbook.
	ExportToday(ctx context.Context, req *dto.TodayAppointmentsRequest) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	clinic *Clinic
	logger *zap.Logger
}

// NewExportService creates an ExportService.
func NewExportService(repo *repository.Repository, clinic *Clinic, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, clinic: clinic, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportToday
// ═══════════════════════════════════════════════════════════
//
// Layout:
//   - sheet "Citas": title row, header row, one row per appointment by hora
//   - sheet "Fila virtual": title row, header row, one row per turno by
//     especialidad and numero
//
// Returns the workbook, a suggested filename, and an error.

func (s *exportService) ExportToday(ctx context.Context, req *dto.TodayAppointmentsRequest) (*bytes.Buffer, string, error) {
	if err := optionalUUID("especialidadId", req.SpecialtyID); err != nil {
		return nil, "", err
	}
	if err := optionalUUID("medicoId", req.DoctorID); err != nil {
		return nil, "", err
	}

	today := s.clinic.today()

	// 1. appointments
	appointments, err := s.repo.Appointment.ListByDate(ctx, today, repository.AppointmentFilter{
		SpecialtyID: req.SpecialtyID,
		DoctorID:    req.DoctorID,
		Statuses:    boardStatuses,
	})
	if err != nil {
		s.logger.Error("failed to list appointments for export", zap.Error(err))
		return nil, "", err
	}

	// 2. queue entries
	entries, err := s.repo.Queue.ListByDate(ctx, today, req.SpecialtyID)
	if err != nil {
		s.logger.Error("failed to list queue for export", zap.Error(err))
		return nil, "", err
	}
	if req.DoctorID != "" {
		kept := entries[:0]
		for _, e := range entries {
			if e.DoctorID == req.DoctorID {
				kept = append(kept, e)
			}
		}
		entries = kept
	}

	if len(appointments) == 0 && len(entries) == 0 {
		return nil, "", ErrExportEmpty
	}

	// 3. workbook
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	idx, _ := f.NewSheet(sheetAppointments)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")
	writeSheet(f, sheetAppointments, headerStyle,
		fmt.Sprintf("%s: citas del %s", s.clinic.Name, today),
		[]string{"Hora", "Estado", "Paciente", "Médico", "Especialidad", "Motivo", "Monto", "Pagado"},
		[]float64{8, 12, 26, 26, 18, 40, 10, 8},
		appointmentRows(appointments),
	)

	if _, err := f.NewSheet(sheetQueue); err != nil {
		s.logger.Error("failed to add queue sheet", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	writeSheet(f, sheetQueue, headerStyle,
		fmt.Sprintf("%s: fila virtual del %s", s.clinic.Name, today),
		[]string{"Turno", "Estado", "Paciente", "Médico", "Especialidad", "Llegada", "Motivo"},
		[]float64{10, 12, 26, 26, 18, 10, 40},
		s.queueRows(entries),
	)

	// 4. buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("failed to write workbook", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	s.logger.Info("day export generated",
		zap.String("fecha", today.String()),
		zap.Int("citas", len(appointments)),
		zap.Int("turnos", len(entries)),
	)
	filename := fmt.Sprintf("agenda_%s.xlsx", today)
	return buf, filename, nil
}

func appointmentRows(list []model.Appointment) [][]interface{} {
	rows := make([][]interface{}, 0, len(list))
	for i := range list {
		a := &list[i]
		b := toBoardAppointment(a)
		paid := "No"
		if a.Paid {
			paid = "Sí"
		}
		rows = append(rows, []interface{}{
			a.Time, a.Status, orDash(b.Patient.Name), orDash(b.Doctor.Name),
			b.Doctor.Specialty, a.Reason, a.Amount, paid,
		})
	}
	return rows
}

func (s *exportService) queueRows(list []model.QueueEntry) [][]interface{} {
	rows := make([][]interface{}, 0, len(list))
	for i := range list {
		e := &list[i]
		patient, doctor := "-", "-"
		if e.Patient != nil {
			patient = e.Patient.FullName()
		}
		if e.Doctor != nil {
			doctor = e.Doctor.FullName()
		}
		specialty := fallbackSpecialtyName
		if e.Specialty != nil {
			specialty = e.Specialty.Name
		}
		rows = append(rows, []interface{}{
			e.Label, e.Status, patient, doctor, specialty,
			e.ArrivedAt.In(s.clinic.Location).Format("15:04"), e.Reason,
		})
	}
	return rows
}

// writeSheet lays out a merged title in row 1, headers in row 2 and data from row 3.
func writeSheet(f *excelize.File, sheet string, headerStyle int, title string, headers []string, widths []float64, rows [][]interface{}) {
	for i, w := range widths {
		col := colName(i)
		f.SetColWidth(sheet, col, col, w)
	}

	f.SetCellValue(sheet, "A1", title)
	f.MergeCell(sheet, "A1", cell(colName(len(headers)-1), 1))
	f.SetCellStyle(sheet, "A1", "A1", headerStyle)

	for i, h := range headers {
		f.SetCellValue(sheet, cell(colName(i), 2), h)
	}
	f.SetCellStyle(sheet, "A2", cell(colName(len(headers)-1), 2), headerStyle)

	for r, values := range rows {
		for c, v := range values {
			f.SetCellValue(sheet, cell(colName(c), r+3), v)
		}
	}
}

// ── helpers ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
