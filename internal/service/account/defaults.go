package account

import "github.com/shopspring/decimal"

// templateNames carry the display names for the SKR03 codes the engine
// itself books against plus the common codes a fresh company starts with.
// Codes outside the map fall back to a generic label; the kontenplan still
// classifies them.
var templateNames = map[string]string{
	"0027": "EDV-Software",
	"0210": "Maschinen",
	"0410": "Geschäftsausstattung",
	"0800": "Gezeichnetes Kapital",
	"0820": "Kapitalrücklage",
	"0846": "Gewinnrücklagen",
	"0860": "Gewinnvortrag/Verlustvortrag",
	"0955": "Steuerrückstellungen",
	"0970": "Sonstige Rückstellungen",
	"1000": "Kasse",
	"1200": "Bank",
	"1400": "Forderungen aus Lieferungen und Leistungen",
	"1571": "Abziehbare Vorsteuer 7 %",
	"1576": "Abziehbare Vorsteuer 19 %",
	"1577": "Abziehbare Vorsteuer nach §13b UStG",
	"1600": "Verbindlichkeiten aus Lieferungen und Leistungen",
	"1741": "Verbindlichkeiten aus Lohn und Gehalt",
	"1755": "Lohn- und Kirchensteuer",
	"1771": "Umsatzsteuer 7 %",
	"1776": "Umsatzsteuer 19 %",
	"1787": "Umsatzsteuer nach §13b UStG",
	"4000": "Umsatzerlöse",
	"4400": "Erlöse 19 % USt",
	"4830": "Sonstige betriebliche Erträge",
	"5000": "Wareneingang/Materialaufwand",
	"6000": "Löhne und Gehälter",
	"6100": "Gesetzliche soziale Aufwendungen",
	"7000": "Sonstige betriebliche Aufwendungen",
	"7100": "Miete",
	"7600": "Abschreibungen auf Sachanlagen",
	"7830": "Zinsen und ähnliche Aufwendungen",
	"7870": "Körperschaftsteuer",
	"9000": "Saldenvorträge Sachkonten",
}

// templateTaxRates pins the VAT rate for the fixed UStVA account codes.
var templateTaxRates = map[string]decimal.Decimal{
	"1571": decimal.RequireFromString("0.07"),
	"1576": decimal.RequireFromString("0.19"),
	"1771": decimal.RequireFromString("0.07"),
	"1776": decimal.RequireFromString("0.19"),
	"4400": decimal.RequireFromString("0.19"),
}

func templateName(code string) string {
	if name, ok := templateNames[code]; ok {
		return name
	}
	return "Konto " + code
}
