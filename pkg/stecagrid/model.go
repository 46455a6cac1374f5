package stecagrid

const (
	MEASUREMENT_AC_POWER     = "AC_Power"
	MEASUREMENT_AC_VOLTAGE   = "AC_Voltage"
	MEASUREMENT_AC_CURRENT   = "AC_Current"
	MEASUREMENT_AC_FREQUENCY = "AC_Frequency"
	MEASUREMENT_DC_VOLTAGE   = "DC_Voltage"
	MEASUREMENT_DC_CURRENT   = "DC_Current"
	MEASUREMENT_TEMPERATURE  = "Temp"
)

type measurementsDocument struct {
	Device deviceElement `xml:"Device"`
}

type deviceElement struct {
	Name         string               `xml:"Name,attr"`
	Type         string               `xml:"Type,attr"`
	Serial       string               `xml:"Serial,attr"`
	NominalPower string               `xml:"NominalPower,attr"`
	NetBiosName  string               `xml:"NetBiosName,attr"`
	DateTime     string               `xml:"DateTime,attr"`
	Measurements []measurementElement `xml:"Measurements>Measurement"`
}

type measurementElement struct {
	Type  string  `xml:"Type,attr"`
	Value *string `xml:"Value,attr"`
	Unit  string  `xml:"Unit,attr"`
}

type DeviceInfo struct {
	Name         string
	Type         string
	Serial       string
	NominalPower string
	NetBiosName  string
}

// Measurement is one reading. Value is nil when the inverter omits it (e.g. at night).
type Measurement struct {
	Type  string
	Value *string
	Unit  string
}

// Measurements keeps document order.
type Measurements []Measurement

func (m Measurements) Get(measurementType string) (Measurement, bool) {
	for _, measurement := range m {
		if measurement.Type == measurementType {
			return measurement, true
		}
	}
	return Measurement{}, false
}

func (m Measurements) Types() []string {
	types := make([]string, 0, len(m))
	for _, measurement := range m {
		types = append(types, measurement.Type)
	}
	return types
}
