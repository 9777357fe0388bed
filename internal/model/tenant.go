package model

type Tenant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Ctime int64  `json:"ctime"`
}
