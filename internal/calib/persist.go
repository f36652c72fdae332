package calib

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/rs/zerolog"
)

// entryColumns is the number of columns in the tab-delimited entry log.
const entryColumns = 6

// paramColumns is the number of columns in the tab-delimited learned-params table.
const paramColumns = 9

// SaveEntryLog writes every tank's entry log to path as tab-delimited rows:
// deviceUid  tankNumber  epoch  sensorReading  verifiedLevel  notes
func (s *Store) SaveEntryLog(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = '\t'
	defer w.Flush()

	for k, log := range s.entries {
		for _, e := range log {
			row := []string{
				k.DeviceUID,
				strconv.Itoa(k.TankNumber),
				strconv.FormatFloat(e.Epoch, 'f', -1, 64),
				strconv.FormatFloat(e.SensorReading, 'f', -1, 64),
				strconv.FormatFloat(e.VerifiedLevel, 'f', -1, 64),
				e.Notes,
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	return w.Error()
}

// LoadEntryLog reads a tab-delimited entry log previously written by
// SaveEntryLog and recomputes regression for every affected tank.
// Truncated or malformed lines are skipped with a logged warning rather
// than aborting the whole load.
func LoadEntryLog(path string, maxEntriesPerTank int, log zerolog.Logger) (*Store, error) {
	s := NewStore(maxEntriesPerTank)

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = -1

	dirty := make(map[Key]bool)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn().Err(err).Msg("calibration log: skipping malformed row")
			continue
		}
		if len(row) != entryColumns {
			log.Warn().Int("columns", len(row)).Msg("calibration log: skipping truncated row")
			continue
		}
		tank, err1 := strconv.Atoi(row[1])
		epoch, err2 := strconv.ParseFloat(row[2], 64)
		sensor, err3 := strconv.ParseFloat(row[3], 64)
		level, err4 := strconv.ParseFloat(row[4], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			log.Warn().Msg("calibration log: skipping row with unparseable numeric field")
			continue
		}
		k := Key{DeviceUID: row[0], TankNumber: tank}
		s.entries[k] = append(s.entries[k], Entry{
			Epoch:         epoch,
			DeviceUID:     row[0],
			TankNumber:    tank,
			SensorReading: sensor,
			VerifiedLevel: level,
			Notes:         row[5],
		})
		dirty[k] = true
	}

	for k := range dirty {
		s.params[k] = recompute(s.entries[k], s.params[k])
	}
	return s, nil
}

// SaveParams writes the learned-params table as tab-delimited rows:
// deviceUid tankNumber slope offset rSquared entryCount lastCalibrationEpoch configMaxValue hasLearnedCalibration
func (s *Store) SaveParams(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = '\t'
	defer w.Flush()

	for k, p := range s.params {
		row := []string{
			k.DeviceUID,
			strconv.Itoa(k.TankNumber),
			strconv.FormatFloat(p.Slope, 'f', -1, 64),
			strconv.FormatFloat(p.Offset, 'f', -1, 64),
			strconv.FormatFloat(p.RSquared, 'f', -1, 64),
			strconv.Itoa(p.EntryCount),
			strconv.FormatFloat(p.LastCalibrationEpoch, 'f', -1, 64),
			strconv.FormatFloat(p.ConfigMaxValue, 'f', -1, 64),
			strconv.FormatBool(p.HasLearnedCalibration),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}
