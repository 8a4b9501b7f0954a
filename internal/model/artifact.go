// Package model defines the core domain models used throughout the application.
package model

// SuccessMessage is the message carried by every successful artifact.
const SuccessMessage = "Data ingestion completed successfully."

// Artifact describes the files produced by an ingestion run. Downstream
// transformation stages read TrainFilePath and TestFilePath.
type Artifact struct {
	TrainFilePath string `json:"train_file_path"`
	TestFilePath  string `json:"test_file_path"`
	Message       string `json:"message"`
	SourceFile    string `json:"source_file"`
	TrainRows     int    `json:"train_rows"`
	TestRows      int    `json:"test_rows"`
	IsIngested    bool   `json:"is_ingested"`
}

// TotalRows is the size of the source table the split was drawn from.
func (a Artifact) TotalRows() int {
	return a.TrainRows + a.TestRows
}
