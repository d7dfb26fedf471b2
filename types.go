package main

// Article is a unit of help content. Top-level articles may carry children;
// children carry ParentID and never have children of their own.
type Article struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	SearchText string     `json:"searchText"`
	Icon       string     `json:"icon,omitempty"`
	Category   string     `json:"category,omitempty"`
	ParentID   string     `json:"parentId,omitempty"`
	Children   []*Article `json:"children,omitempty"`
}

// ArticleDefinition describes where an article's content comes from
type ArticleDefinition struct {
	ID       string              `yaml:"id"`
	Title    string              `yaml:"title"`
	File     string              `yaml:"file"`
	Icon     string              `yaml:"icon,omitempty"`
	Category string              `yaml:"category,omitempty"`
	Children []ArticleDefinition `yaml:"children,omitempty"`
}

// Definitions is the YAML document listing every article in display order
type Definitions struct {
	Articles []ArticleDefinition `yaml:"articles"`
}

// FolderMap assigns an article id to its topic folder under the image root
type FolderMap map[string]string

// AssetInjection places an asset that no article references into a target
// article. The asset is copied from Source to Destination (both image URL
// paths) and an <img> tag is inserted unless Marker is already present.
type AssetInjection struct {
	ArticleID   string `yaml:"article_id"`
	Source      string `yaml:"source"`
	Destination string `yaml:"destination"`
	Marker      string `yaml:"marker"`
}

// FlatArticle is an article detached from the tree, with its position kept
type FlatArticle struct {
	*Article
	Parent   string
	Position int
}

// ProcessingStatus represents the outcome status of building one article
type ProcessingStatus string

const (
	StatusSuccess ProcessingStatus = "success"
	StatusMissing ProcessingStatus = "missing"
	StatusError   ProcessingStatus = "error"
)

// ProcessingResult tracks the outcome of building each definition
type ProcessingResult struct {
	ID     string
	File   string
	Status ProcessingStatus
	Error  error
}

// Flatten walks the tree depth-first, parents before their children
func Flatten(articles []*Article) []FlatArticle {
	var flat []FlatArticle
	for i, a := range articles {
		flat = append(flat, FlatArticle{Article: a, Position: i})
		for j, c := range a.Children {
			flat = append(flat, FlatArticle{Article: c, Parent: a.ID, Position: j})
		}
	}
	return flat
}

// FindArticle returns the article with the given id anywhere in the tree
func FindArticle(articles []*Article, id string) *Article {
	for _, fa := range Flatten(articles) {
		if fa.ID == id {
			return fa.Article
		}
	}
	return nil
}
