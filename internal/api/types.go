package api

// ClassifiedImages is the result of a classify call.
type ClassifiedImages struct {
	CustomClasses   int               `json:"custom_classes,omitempty"`
	ImagesProcessed int               `json:"images_processed,omitempty"`
	Images          []ClassifiedImage `json:"images"`
	Warnings        []WarningInfo     `json:"warnings,omitempty"`
}

// ClassifiedImage holds the results for one image.
type ClassifiedImage struct {
	SourceURL   string             `json:"source_url,omitempty"`
	ResolvedURL string             `json:"resolved_url,omitempty"`
	Image       string             `json:"image,omitempty"`
	Error       *ErrorInfo         `json:"error,omitempty"`
	Classifiers []ClassifierResult `json:"classifiers"`
}

// ClassifierResult lists the classes one classifier matched.
type ClassifierResult struct {
	Name         string        `json:"name"`
	ClassifierID string        `json:"classifier_id"`
	Classes      []ClassResult `json:"classes"`
}

// ClassResult is a single class match.
type ClassResult struct {
	Class         string  `json:"class"`
	Score         float64 `json:"score"`
	TypeHierarchy string  `json:"type_hierarchy,omitempty"`
}

// ErrorInfo describes a per-image failure inside a successful response.
type ErrorInfo struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
	ErrorID     string `json:"error_id"`
}

// WarningInfo is a non-fatal problem reported by the service.
type WarningInfo struct {
	WarningID   string `json:"warning_id"`
	Description string `json:"description"`
}

// DetectedFaces is the result of a face detection call.
type DetectedFaces struct {
	ImagesProcessed int              `json:"images_processed,omitempty"`
	Images          []ImageWithFaces `json:"images"`
	Warnings        []WarningInfo    `json:"warnings,omitempty"`
}

// ImageWithFaces holds the faces found in one image.
type ImageWithFaces struct {
	Faces       []Face     `json:"faces"`
	Image       string     `json:"image,omitempty"`
	SourceURL   string     `json:"source_url,omitempty"`
	ResolvedURL string     `json:"resolved_url,omitempty"`
	Error       *ErrorInfo `json:"error,omitempty"`
}

// Face is one detected face.
type Face struct {
	Age          *FaceAge      `json:"age,omitempty"`
	Gender       *FaceGender   `json:"gender,omitempty"`
	FaceLocation *FaceLocation `json:"face_location,omitempty"`
}

// FaceAge is an estimated age range.
type FaceAge struct {
	Min   int     `json:"min,omitempty"`
	Max   int     `json:"max,omitempty"`
	Score float64 `json:"score"`
}

// FaceGender is an estimated gender.
type FaceGender struct {
	Gender      string  `json:"gender"`
	GenderLabel string  `json:"gender_label,omitempty"`
	Score       float64 `json:"score"`
}

// FaceLocation is the bounding box of a face in pixels.
type FaceLocation struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
}

// Classifier is a custom classifier.
type Classifier struct {
	ClassifierID  string  `json:"classifier_id"`
	Name          string  `json:"name"`
	Owner         string  `json:"owner,omitempty"`
	Status        string  `json:"status,omitempty"`
	CoreMLEnabled bool    `json:"core_ml_enabled,omitempty"`
	Explanation   string  `json:"explanation,omitempty"`
	Created       string  `json:"created,omitempty"`
	Classes       []Class `json:"classes,omitempty"`
	Retrained     string  `json:"retrained,omitempty"`
	Updated       string  `json:"updated,omitempty"`
}

// Class is a class defined by a classifier.
type Class struct {
	Class string `json:"class"`
}

// Classifiers wraps the classifier list response.
type Classifiers struct {
	Classifiers []Classifier `json:"classifiers"`
}
