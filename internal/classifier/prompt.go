package classifier

import (
	"encoding/json"
	"fmt"
)

const promptTemplate = `You are given a list of CSS selectors and some lines contained by them, extracted from a website:
%s

Your task is to analyze these selectors and determine the best matches for the following elements:
1. Review title
2. Review text body
3. Author name
4. Rating element
5. Next pagination button (button element)

### Guidelines for Selection:
In case of CSS selectors with similar content, choose the one that contains only Review Title, Review Text, or Author Name. Do not choose tags that contain both or any other details.
- **Review Title:** Look for selectors containing terms such as 'title', 'heading', 'subject', 'review-title', or similar keywords.
- **Review Text Body:** Look for classes, IDs, or tags containing terms such as 'review', 'comment', 'text', 'content', 'body', 'feedback', 'testimonial', or similar keywords.
- **Author Name:** Identify selectors containing words like 'author', 'user', 'name', 'profile', 'by', 'reviewer', 'creator', or 'submitter'.
- **Rating Element:** Focus on selectors with terms like 'rating', 'stars', 'score', 'rank', 'grade', 'review-score', or similar indicators of numeric or star-based ratings.
- **Next Pagination Button:** Look for terms such as 'next-page', 'next', 'pagination', 'nav', 'page', 'load-more', 'show-more', 'forward', 'arrow-right', or similar navigation elements. Ensure the pagination element is specifically a ` + "`<button>`" + ` tag.

### Constraints:
- Use regex patterns to identify relevant selectors for each element based on keyword matches in class names, IDs, and tag names.
- Prioritize selectors with multiple keyword matches or stronger indicators.
- Return only the most relevant selector for each category.

### Expected Output Format:
You must return only a JSON object in the following exact format, do not have any additional explanation:
{
    "review_title_tag": "selector_for_review_title",
    "review_tag": "selector_for_review_body",
    "author_tag": "selector_for_author_name",
    "rating_tag": "selector_for_rating",
    "next_pagination_button_tag": "selector_for_next_button"
}
`

// BuildPrompt renders the classification prompt for selectors.
// encoding/json sorts map keys, so equal mappings give identical prompts.
func BuildPrompt(selectors map[string]string) (string, error) {
	if selectors == nil {
		selectors = map[string]string{}
	}
	listing, err := json.MarshalIndent(selectors, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode selectors: %w", err)
	}
	return fmt.Sprintf(promptTemplate, listing), nil
}
