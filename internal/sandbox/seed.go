package sandbox

// seedFiles is the default skeleton every new sandbox starts with.
var seedFiles = map[string]string{
	"index.html": `<!DOCTYPE html>
<html lang="zh-CN">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>My Sandbox</title>
    <link rel="stylesheet" href="style.css">
</head>
<body>
    <div id="app">
        <h1>Hello, World!</h1>
        <p>This is your sandbox. Ask AI to create something amazing!</p>
    </div>
    <script src="script.js"></script>
</body>
</html>
`,
	"script.js": `// Your JavaScript code here
console.log('Sandbox initialized!');
`,
	"style.css": `/* Your CSS code here */
body {
    font-family: Arial, sans-serif;
    margin: 0;
    padding: 20px;
    background-color: #f5f5f5;
}

#app {
    max-width: 800px;
    margin: 0 auto;
    background: white;
    padding: 20px;
    border-radius: 8px;
    box-shadow: 0 2px 4px rgba(0,0,0,0.1);
}

h1 {
    color: #333;
}
`,
}
