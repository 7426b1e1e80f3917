package htmlutil

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// FormInputs collects the name/value pairs of every input element inside
// the named form. Inputs without a name are skipped, inputs without a
// value contribute an empty string, which is what a browser would submit.
func FormInputs(doc *goquery.Document, formName string) (map[string]string, error) {
	form := doc.Find(fmt.Sprintf("form[name=%s]", formName))
	if len(form.Nodes) == 0 {
		return nil, fmt.Errorf("could not find form %q", formName)
	}

	fields := map[string]string{}
	form.Find("input").Each(func(_ int, input *goquery.Selection) {
		name := input.AttrOr("name", "")
		if name == "" {
			return
		}
		fields[name] = input.AttrOr("value", "")
	})

	return fields, nil
}
