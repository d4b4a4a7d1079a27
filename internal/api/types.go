package api

type createFileRequest struct {
	Name  string `json:"name"`
	Alias string `json:"alias"`
}

type createBundleRequest struct {
	Name     string   `json:"name"`
	Alias    string   `json:"alias"`
	BasePath string   `json:"basePath"`
	Paths    []string `json:"paths"`
}

type updateFileRequest struct {
	Name        *string `json:"name"`
	Alias       *string `json:"alias"`
	UseAutoIcon *bool   `json:"useAutoIcon"`
}

type createDeploymentRequest struct {
	FileID           string `json:"fileId"`
	RepoPath         string `json:"repoPath"`
	FileRelativePath string `json:"fileRelativePath"`
	SourceBranch     string `json:"sourceBranch"`
	SourceCommit     string `json:"sourceCommit"`
	AutoExclude      *bool  `json:"autoExclude"`
}

type descriptionRequest struct {
	Description *string `json:"description"`
}

type commitRequest struct {
	Message string `json:"message"`
	Tag     string `json:"tag"`
}

type checkoutRequest struct {
	Hash string `json:"hash"`
}

type tagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type tagIDsRequest struct {
	TagIDs []string `json:"tagIds"`
}
