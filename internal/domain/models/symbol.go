package models

// Symbol is one row of an exchange ticker list (e.g., the NSE equity list).
//
// swagger:model Symbol
type Symbol struct {
	Symbol   string `json:"symbol" example:"RELIANCE"`
	Name     string `json:"name" example:"Reliance Industries Limited"`
	Series   string `json:"series,omitempty" example:"EQ"`
	Exchange string `json:"exchange" example:"NSE"`
}
